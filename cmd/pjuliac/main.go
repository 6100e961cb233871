// pjuliac compiles a source file down to x86-64 assembly, optionally
// dumping the intermediate representations along the way.
//
// Usage: pjuliac [-o out] [-p] [-t] [-h] [-l] <input>
package main

import (
	"flag"
	"fmt"
	"os"

	"pjulia/pkg/amd64"
	"pjulia/pkg/hir"
	"pjulia/pkg/lang"
	"pjulia/pkg/lir"
	"pjulia/pkg/typing"
)

func run() error {
	output := flag.String("o", "a", "output file base name")
	parseOnly := flag.Bool("p", false, "only parse the input")
	typeOnly := flag.Bool("t", false, "parse the input and type it")
	debugHIR := flag.Bool("h", false, "also write the HIR representation to <out>.hir")
	debugLIR := flag.Bool("l", false, "also write the LIR representation to <out>.lir")
	flag.Parse()

	if flag.NArg() != 1 {
		return fmt.Errorf("usage: pjuliac [-o out] [-p] [-t] [-h] [-l] <input>")
	}
	input := flag.Arg(0)

	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	decls, err := lang.Parse(input, string(source))
	if err != nil {
		return err
	}
	if *parseOnly {
		return nil
	}

	prog, err := typing.Check(decls)
	if err != nil {
		return err
	}
	if *typeOnly {
		return nil
	}

	hirSrc, err := hir.Lower(prog)
	if err != nil {
		return err
	}
	if *debugHIR {
		if err := os.WriteFile(*output+".hir", []byte(hirSrc.String()), 0o644); err != nil {
			return err
		}
	}

	lirSrc, err := lir.Lower(hirSrc)
	if err != nil {
		return err
	}
	if *debugLIR {
		if err := os.WriteFile(*output+".lir", []byte(lirSrc.String()), 0o644); err != nil {
			return err
		}
	}

	asm, err := amd64.Emit(lirSrc)
	if err != nil {
		return err
	}
	return os.WriteFile(*output+".asm", []byte(asm), 0o644)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
