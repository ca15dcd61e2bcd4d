// Package output reconciles generated files with the files already on disk.
package output

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/errors"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// Marker identifies files written by digen. It follows the convention recognised by ast.IsGenerated.
const Marker = "// Code generated by digen. DO NOT EDIT."

// File is a generated file.
type File struct {
	// Path is slash separated and relative to the module root.
	Path    string
	Content []byte
}

// FS is a writable filesystem.
type FS interface {
	fs.FS
	WriteFile(name string, data []byte, perm fs.FileMode) error
}

// RemoveFS is a filesystem that files can be removed from.
type RemoveFS interface {
	FS
	Remove(name string) error
}

// Action to take for a file.
type Action int

const (
	Unchanged Action = iota
	Create
	Update
	Remove
)

func (a Action) String() string {
	switch a {
	case Unchanged:
		return "unchanged"
	case Create:
		return "create"
	case Update:
		return "update"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Change to a single file.
type Change struct {
	Path    string
	Action  Action
	Old     []byte
	Content []byte
}

// Diff returns a unified diff of the change.
func (c Change) Diff() string {
	if c.Action == Unchanged {
		return ""
	}
	before, after := string(c.Old), string(c.Content)
	edits := myers.ComputeEdits(span.URIFromPath(c.Path), before, after)
	return fmt.Sprint(gotextdiff.ToUnified("a/"+c.Path, "b/"+c.Path, before, edits))
}

// Changes computes the changes required for fsys to contain files.
//
// A previously generated file called name in any of dirs that is not in files is removed. Files without [Marker] are
// never removed.
func Changes(fsys fs.FS, files []File, dirs []string, name string) ([]Change, error) {
	wanted := map[string]bool{}
	var out []Change
	for _, file := range files {
		wanted[file.Path] = true
		old, err := fs.ReadFile(fsys, file.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			out = append(out, Change{Path: file.Path, Action: Create, Content: file.Content})
		case err != nil:
			return nil, errors.Errorf("%s: %w", file.Path, err)
		case bytes.Equal(old, file.Content):
			out = append(out, Change{Path: file.Path, Action: Unchanged, Old: old, Content: file.Content})
		default:
			out = append(out, Change{Path: file.Path, Action: Update, Old: old, Content: file.Content})
		}
	}
	for _, dir := range dirs {
		stale := path.Join(dir, name)
		if wanted[stale] {
			continue
		}
		old, err := fs.ReadFile(fsys, stale)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, errors.Errorf("%s: %w", stale, err)
		}
		if !bytes.HasPrefix(old, []byte(Marker)) {
			continue
		}
		wanted[stale] = true
		out = append(out, Change{Path: stale, Action: Remove, Old: old})
	}
	slices.SortFunc(out, func(a, b Change) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

// Pending returns the changes that are not [Unchanged].
func Pending(changes []Change) []Change {
	return slices.DeleteFunc(slices.Clone(changes), func(c Change) bool { return c.Action == Unchanged })
}

// Apply changes to fsys.
func Apply(fsys FS, changes []Change) error {
	for _, change := range changes {
		switch change.Action {
		case Unchanged:
		case Create, Update:
			if err := fsys.WriteFile(change.Path, change.Content, 0644); err != nil { //nolint:gosec
				return errors.Errorf("%s: %w", change.Path, err)
			}
		case Remove:
			remover, ok := fsys.(RemoveFS)
			if !ok {
				return errors.Errorf("%s: filesystem does not support removal", change.Path)
			}
			if err := remover.Remove(change.Path); err != nil {
				return errors.Errorf("%s: %w", change.Path, err)
			}
		}
	}
	return nil
}

// Dir is an on-disk directory that writes files atomically.
type Dir string

var _ RemoveFS = Dir("")

func (d Dir) Open(name string) (fs.File, error) { return os.DirFS(string(d)).Open(name) }

// WriteFile writes to a temporary file then renames it over name.
func (d Dir) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	dest := filepath.Join(string(d), filepath.FromSlash(name))
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".digen-*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name()) //nolint
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp.Name(), dest))
}

func (d Dir) Remove(name string) error {
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	return errors.WithStack(os.Remove(filepath.Join(string(d), filepath.FromSlash(name))))
}
