// Package buildtesting provides throwaway Go modules for use in tests.
package buildtesting

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

// Module creates a temporary module with the given path and changes into it.
//
// files maps slash separated paths to their content. A go.mod is added unless files contains one.
func Module(t *testing.T, module string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if _, ok := files["go.mod"]; !ok {
		writeFile(t, dir, "go.mod", "module "+module+"\n\ngo 1.24\n")
	}
	for name, content := range files {
		writeFile(t, dir, name, content)
	}
	t.Chdir(dir)
	return dir
}

// Testdata reads files under dir into a map suitable for [Module].
func Testdata(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path) //nolint
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	assert.NoError(t, err)
	return files
}

// Go runs the go tool in the current directory and returns its combined output.
//
// The test fails if the command fails.
func Go(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.CommandContext(t.Context(), "go", args...)
	out, err := cmd.CombinedOutput()
	assert.NoError(t, err, "go %v:\n%s", args, out)
	return string(out)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	err := os.MkdirAll(filepath.Dir(path), 0750)
	assert.NoError(t, err)
	err = os.WriteFile(path, []byte(content), 0600)
	assert.NoError(t, err)
}
