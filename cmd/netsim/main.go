// netsim simulates a netlist from the console: it prompts for each input's
// bit string, ticks the circuit, prints the outputs, and loops forever.
//
// Usage: netsim <netlist>
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"pjulia/pkg/netlist"
)

func parseBits(line string, want uint32) ([]bool, bool) {
	line = strings.TrimSpace(line)
	if uint32(len(line)) != want {
		return nil, false
	}
	bits := make([]bool, 0, len(line))
	for _, c := range line {
		switch c {
		case '0':
			bits = append(bits, false)
		case '1':
			bits = append(bits, true)
		default:
			return nil, false
		}
	}
	return bits, true
}

func requestInput(in *bufio.Reader, port netlist.PortInfo) []bool {
	for {
		if port.Bits == 1 {
			fmt.Printf("    %s (1 bit): ", port.Name)
		} else {
			fmt.Printf("    %s (%d bits): ", port.Name, port.Bits)
		}
		line, err := in.ReadString('\n')
		if err != nil {
			fmt.Println()
			os.Exit(0)
		}
		if bits, ok := parseBits(line, port.Bits); ok {
			return bits
		}
		fmt.Printf("    Please enter %d bit(s) of '0' and '1'.\n", port.Bits)
	}
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: netsim <netlist>")
		os.Exit(1)
	}

	contents, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read netlist: %v", err)
	}

	parsed, err := netlist.Parse(os.Args[1], string(contents))
	if err != nil {
		log.Fatalf("Parse error: %v", err)
	}
	graph, err := netlist.Build(parsed)
	if err != nil {
		log.Fatalf("Build error: %v", err)
	}
	ops, err := netlist.Sort(graph)
	if err != nil {
		log.Fatalf("Sort error: %v", err)
	}

	runner := netlist.NewRunner(ops)
	in := bufio.NewReader(os.Stdin)

	for tick := 1; ; tick++ {
		fmt.Printf("Tick %d\n", tick)
		for _, port := range ops.Inputs {
			bits := requestInput(in, port)
			if err := runner.Write(port, bits); err != nil {
				log.Fatalf("Input error: %v", err)
			}
		}
		runner.Tick()
		for _, port := range ops.Outputs {
			var out strings.Builder
			for _, b := range runner.Read(port) {
				if b {
					out.WriteByte('1')
				} else {
					out.WriteByte('0')
				}
			}
			fmt.Printf("    => %s = %s\n", port.Name, out.String())
		}
	}
}
