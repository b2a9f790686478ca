// Package maincmd implements the thin CLI surfaces that exercise the core
// packages end-to-end (§10, component J): dump, run, and asm. It follows
// the teacher codebase's mainer-based flag/reflection dispatch pattern.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "alo"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>...]
       %[1]s -h|--help
       %[1]s -v|--version

Toolchain for a chunked-module interactive-fiction bytecode runtime.

The <command> can be one of:
       run                       Load a module and run its command loop
                                 against stdin.
       dump                      Load a module and print it in a
                                 human-readable textual form.
       asm                       Assemble a textual module into the
                                 binary chunked format.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.

Environment variables:
       ALO_LINE_WIDTH            Output line-wrap width (default 80).
       ALO_MAX_COMMAND_WORDS     Command word-count ceiling (default 50).
       ALO_SAVE_DIR              Directory for save/transcript files
                                 used by 'run' (default ".").
       ALO_SAVE_SLOT             Save slot number used by 'run' (default 1).
`, binName)
)

// Cmd is the top-level command, driven by mainer's flag parser and
// dispatched by reflection over its exported command methods (§10.2).
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	args  []string
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}
	cmds := buildCmds(c)
	c.cmdFn = cmds[c.args[0]]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", c.args[0])
	}
	if len(c.args[1:]) == 0 {
		return fmt.Errorf("%s: a module path must be provided", c.args[0])
	}
	return nil
}

// Main is the CLI entry point, given the process args (including argv[0])
// and a Stdio triple.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   true,
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return mainer.Failure
	}
	return mainer.Success
}

// buildCmds maps lowercased method names to the subset of v's methods
// matching the (context.Context, mainer.Stdio, []string) error signature.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
