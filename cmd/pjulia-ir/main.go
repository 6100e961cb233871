// pjulia-ir compiles a textual IR file to assembly.
//
// Usage:
//
//	pjulia-ir hir [-o out] <file>
//	pjulia-ir lir [-o out] <file>
package main

import (
	"flag"
	"fmt"
	"os"

	"pjulia/pkg/amd64"
	"pjulia/pkg/hir"
	"pjulia/pkg/lir"
)

func compileHIR(fileName string) (string, error) {
	contents, err := os.ReadFile(fileName)
	if err != nil {
		return "", err
	}
	src, err := hir.ParseSource(fileName, string(contents))
	if err != nil {
		return "", err
	}

	fmt.Println("** HIR **")
	fmt.Print(src.String())

	compiled, err := lir.Lower(src)
	if err != nil {
		return "", err
	}
	fmt.Println()
	fmt.Println("** LIR **")
	fmt.Print(compiled.String())

	asm, err := amd64.Emit(compiled)
	if err != nil {
		return "", err
	}
	fmt.Println()
	fmt.Println("** asm **")
	fmt.Print(asm)
	return asm, nil
}

func compileLIR(fileName string) (string, error) {
	contents, err := os.ReadFile(fileName)
	if err != nil {
		return "", err
	}
	src, err := lir.ParseSource(fileName, string(contents))
	if err != nil {
		return "", err
	}

	fmt.Println("** LIR **")
	fmt.Print(src.String())

	asm, err := amd64.Emit(src)
	if err != nil {
		return "", err
	}
	fmt.Println()
	fmt.Println("** asm **")
	fmt.Print(asm)
	return asm, nil
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: pjulia-ir (hir|lir) [-o out] <file>")
	}
	sub := os.Args[1]

	fs := flag.NewFlagSet(sub, flag.ExitOnError)
	output := fs.String("o", "", "write the assembly to this file")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: pjulia-ir %s [-o out] <file>", sub)
	}

	var asm string
	var err error
	switch sub {
	case "hir":
		asm, err = compileHIR(fs.Arg(0))
	case "lir":
		asm, err = compileLIR(fs.Arg(0))
	default:
		return fmt.Errorf("unknown subcommand %q (expected hir or lir)", sub)
	}
	if err != nil {
		return err
	}

	if *output != "" {
		return os.WriteFile(*output, []byte(asm), 0o644)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
