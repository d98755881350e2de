package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mna/mainer"

	"nilan/ast"
	"nilan/compiler"
	"nilan/interpreter"
	"nilan/lexer"
	"nilan/parser"
	"nilan/vm"
)

const binName = "nilan"

var usage = fmt.Sprintf(`usage: %[1]s --static <file> | --translate <file.cil> | --vmrun <file.class>

Exactly one mode must be given:
       --static <file>         Parse and tree-walk-interpret <file>.
       --translate <file.cil>  Compile <file.cil> to bytecode, writing
                                <file.class> alongside it.
       --vmrun <file.class>    Deserialize and execute <file.class>.
`, binName)

// Cmd is nilan's single command, with three mutually exclusive modes
// selected by which flag is set.
type Cmd struct {
	Static    string `flag:"static"`
	Translate string `flag:"translate"`
	VMRun     string `flag:"vmrun"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

// Validate enforces the CLI's mutual-exclusivity contract before any mode
// runs.
func (c *Cmd) Validate() error {
	set := 0
	for _, f := range []string{c.Static, c.Translate, c.VMRun} {
		if f != "" {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of --static, --translate, --vmrun is required")
	}
	return nil
}

// Main parses args and dispatches to the selected mode, returning the
// process exit code: Success on a clean run, Failure on a compiler/VM
// error, InvalidArgs on a malformed invocation.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "💥 invalid arguments: %s\n%s", err, usage)
		return mainer.InvalidArgs
	}

	var err error
	switch {
	case c.Static != "":
		err = runStatic(c.Static, stdio)
	case c.Translate != "":
		err = runTranslate(c.Translate)
	case c.VMRun != "":
		err = runVMRun(c.VMRun, stdio)
	}
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return mainer.Failure
	}
	return mainer.Success
}

func main() {
	c := &Cmd{}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}

type parserUnitResult struct {
	unit ast.CompilationUnit
	err  error
}

func parseUnit(sourcePath string) (result parserUnitResult) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		result.err = fmt.Errorf("💥 failed to read %s: %w", sourcePath, err)
		return
	}
	tokens, err := lexer.New(string(data)).Scan()
	if err != nil {
		result.err = err
		return
	}
	unit, errs := parser.Make(tokens).ParseUnit()
	if len(errs) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "💥 parse errors in %s:\n", sourcePath)
		for _, e := range errs {
			fmt.Fprintf(&b, "\t%s\n", e)
		}
		result.err = errors.New(b.String())
		return
	}
	result.unit = unit
	return
}

func runStatic(path string, stdio mainer.Stdio) error {
	result := parseUnit(path)
	if result.err != nil {
		return result.err
	}
	interp := interpreter.Make()
	interp.In = stdio.Stdin
	interp.Out = stdio.Stdout
	return interp.Interpret(result.unit)
}

func runTranslate(path string) error {
	result := parseUnit(path)
	if result.err != nil {
		return result.err
	}
	code, err := compiler.NewASTCompiler().Compile(result.unit)
	if err != nil {
		return err
	}

	outPath := classPathFor(path)
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("💥 failed to create %s: %w", outPath, err)
	}
	defer out.Close()
	return compiler.WriteTo(out, code)
}

func runVMRun(path string, stdio mainer.Stdio) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("💥 failed to read %s: %w", path, err)
	}
	defer in.Close()

	code, err := compiler.ReadFrom(in)
	if err != nil {
		return err
	}

	machine := vm.New()
	machine.In = stdio.Stdin
	machine.Out = stdio.Stdout
	return machine.Run(code)
}

// classPathFor derives the compiled output path for a source file: the
// same basename with its extension (conventionally .cil) replaced by
// .class, alongside the source.
func classPathFor(sourcePath string) string {
	ext := filepathExt(sourcePath)
	if ext == "" {
		return sourcePath + ".class"
	}
	return strings.TrimSuffix(sourcePath, ext) + ".class"
}

func filepathExt(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && strings.LastIndex(path, "/") < i {
		return path[i:]
	}
	return ""
}
