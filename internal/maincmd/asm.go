package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/alo/lang/compiler"
	"github.com/mna/alo/lang/module"
)

// Asm reads the textual assembly at args[0] and writes the equivalent
// binary chunked module to args[1] (§10.6).
func (c *Cmd) Asm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("asm: usage: asm <input.asm> <output.alo>")
	}

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("asm: %w", err)
	}

	mod, err := compiler.Assemble(string(text))
	if err != nil {
		return fmt.Errorf("asm: %w", err)
	}

	out, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("asm: %w", err)
	}
	defer out.Close()

	if err := module.Write(out, mod); err != nil {
		return fmt.Errorf("asm: %w", err)
	}
	return nil
}
