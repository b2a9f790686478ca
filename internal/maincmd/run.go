package maincmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/alo/internal/session"
	"github.com/mna/alo/lang/dispatch"
	"github.com/mna/alo/lang/module"
	"github.com/mna/alo/lang/vm"
)

// cliHost implements vm.Host for the run command: quit ends the process,
// pause waits for an Enter keypress, matching the original shell's
// behavior (§6, §9 `pause`/`quit`).
type cliHost struct {
	stdio mainer.Stdio
	in    *bufio.Scanner
}

func (h *cliHost) Quit(code int) { os.Exit(code) }

func (h *cliHost) Pause() {
	fmt.Fprintln(h.stdio.Stdout, "Press Enter to continue...")
	h.in.Scan()
}

// Run loads the module at args[0] and drives its command loop against
// stdin, one line per command, flushing formatted output after each
// (§6, §10).
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("run: a module path is required")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer f.Close()

	mod, err := module.Read(f)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	in := bufio.NewScanner(stdio.Stdin)
	host := &cliHost{stdio: stdio, in: in}
	m := vm.New(mod, host)
	m.Warnf = func(format string, args ...interface{}) { fmt.Fprintf(stdio.Stderr, format+"\n", args...) }
	m.Output().SetLineWidth(cfg.LineWidth)

	resumed, err := resumeSession(m, cfg.SaveDir, cfg.SaveSlot)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if !resumed {
		if err := m.Reinitialize(); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if err := session.WriteTranscript(cfg.SaveDir, cfg.SaveSlot, ""); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	present := func(s string) {
		fmt.Fprint(stdio.Stdout, s)
		if err := session.AppendTranscript(cfg.SaveDir, cfg.SaveSlot, s); err != nil {
			fmt.Fprintf(stdio.Stderr, "run: %s\n", err)
		}
	}
	m.Output().Flush(present)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !in.Scan() {
			return nil
		}
		line := in.Text()

		msg, err := dispatch.DispatchWithLimit(m, mod, line, cfg.MaxCommandWords)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if msg != "" {
			m.Output().WriteString(msg)
		}
		m.Output().Flush(present)

		if err := saveSession(m, cfg.SaveDir, cfg.SaveSlot); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
}

// resumeSession restores the variable vector from slot's save file if one
// already exists, reporting whether a prior session was found (§6, §10.8:
// "the runner selects or creates a session").
func resumeSession(m *vm.Machine, dir string, slot int) (bool, error) {
	f, err := os.Open(session.SaveFile(dir, slot))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("opening save file: %w", err)
	}
	defer f.Close()

	vals, err := session.ReadVars(f, m.Vars().Len())
	if err != nil {
		return false, err
	}
	if err := m.Vars().Restore(vals); err != nil {
		return false, err
	}
	return true, nil
}

// saveSession persists the current variable vector to slot's save file,
// overwriting any prior contents. Called after every command (§10.8).
func saveSession(m *vm.Machine, dir string, slot int) error {
	f, err := os.Create(session.SaveFile(dir, slot))
	if err != nil {
		return fmt.Errorf("creating save file: %w", err)
	}
	defer f.Close()
	return session.WriteVars(f, m.Vars().Snapshot())
}
