package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"cminor.dev/jvmgen/pkg/classfile"
	"cminor.dev/jvmgen/pkg/codegen"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
cminorc compiles one or more resolved-AST fixtures (JSON, one per
translation unit) into JVM .class files. It stands in for the Cminor
front end (lexer/parser/semantic analysis), which is out of scope: each
input is already a fully typed, slot-assigned cminorast.TranslationUnit,
serialized to JSON by whatever produced it.
`, "\n", " ")

var Cminorc = cli.New(Description).
	WithArg(cli.NewArg("inputs", "The resolved-AST fixture (.json) files to compile").
		AsOptional().WithType(cli.TypeString)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	for _, input := range args {
		content, err := os.ReadFile(input)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		tu, err := decodeTranslationUnit(content)
		if err != nil {
			fmt.Printf("ERROR: Unable to decode fixture %q: %s\n", input, err)
			return -1
		}

		gen := codegen.NewGenerator()
		class, err := gen.GenerateClass(tu)
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'codegen' pass for %q: %s\n", input, err)
			return -1
		}

		bytes, err := classfile.Write(class)
		if err != nil {
			fmt.Printf("ERROR: Unable to serialize class file for %q: %s\n", input, err)
			return -1
		}

		filename, extension := path.Base(input), path.Ext(input)
		outPath := fmt.Sprintf("%s.class", strings.TrimSuffix(filename, extension))

		output, err := os.Create(outPath)
		if err != nil {
			fmt.Printf("ERROR: Unable to open output file: %s\n", err)
			return -1
		}
		defer output.Close()

		if _, err := output.Write(bytes); err != nil {
			fmt.Printf("ERROR: Unable to write output file: %s\n", err)
			return -1
		}
	}

	return 0
}

func main() { os.Exit(Cminorc.Run(os.Args, os.Stdout)) }
