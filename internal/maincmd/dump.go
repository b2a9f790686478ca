package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/alo/lang/compiler"
	"github.com/mna/alo/lang/module"
)

// Dump loads the binary module at args[0] and prints its textual form
// (§10.6), chunk table by chunk table.
func (c *Cmd) Dump(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("dump: a module path is required")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	defer f.Close()

	mod, err := module.Read(f)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	fmt.Fprint(stdio.Stdout, compiler.Disassemble(mod))
	return nil
}
