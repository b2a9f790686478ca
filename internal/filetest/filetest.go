// Package filetest provides golden-file test helpers: list fixture files
// by extension, and diff actual output
// against a `.want`/`.err`-suffixed golden file, with a flag to refresh
// the golden files in bulk.
package filetest

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/kylelemons/godebug/diff"
)

var updateAll = flag.Bool("test.update-all-tests", false, "update every golden file instead of comparing against it")

// Fixtures returns the regular files directly inside dir whose name ends
// with ext (a leading dot is added if missing).
func Fixtures(t *testing.T, dir, ext string) []os.FileInfo {
	t.Helper()
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}

	dents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	var out []os.FileInfo
	for _, dent := range dents {
		if !dent.Type().IsRegular() {
			continue
		}
		if ext != "" && filepath.Ext(dent.Name()) != ext {
			continue
		}
		fi, err := dent.Info()
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, fi)
	}
	return out
}

// Golden compares got against the golden file resultDir/baseName+goldExt
// (label is used only in failure messages). With -test.update-all-tests,
// or when update is non-nil and *update is true, the golden file is
// rewritten with got instead of compared.
func Golden(t *testing.T, label, baseName, goldExt, resultDir, got string, update *bool) {
	t.Helper()
	goldFile := filepath.Join(resultDir, baseName+goldExt)

	if *updateAll || (update != nil && *update) {
		if err := os.WriteFile(goldFile, []byte(got), 0o600); err != nil {
			t.Fatal(err)
		}
		return
	}

	wantb, err := os.ReadFile(goldFile)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	want := string(wantb)

	if testing.Verbose() {
		t.Logf("got %s:\n%s\n", label, got)
	}
	if patch := diff.Diff(want, got); patch != "" {
		if testing.Verbose() {
			t.Logf("want %s:\n%s\n", label, want)
		}
		t.Errorf("diff %s:\n%s\n", label, patch)
	}
}
