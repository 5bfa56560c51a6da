// Package catalog enumerates the session environments a user can pick at
// the login prompt.
package catalog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/turtacn/Vigil/pkg/logger"
)

// Kind is the variant of a session environment.
type Kind int

const (
	KindX Kind = iota
	KindWayland
	KindShell
)

func (k Kind) String() string {
	switch k {
	case KindX:
		return "x11"
	case KindWayland:
		return "wayland"
	case KindShell:
		return "shell"
	default:
		return "unknown"
	}
}

// Entry is one selectable session environment.
type Entry struct {
	Name string
	Kind Kind
	// Path is the init script (X) or launch script (Wayland). Empty for Shell.
	Path string
}

// List returns one X entry per regular file or symlink in dir, sorted by
// name. A missing directory yields no entries.
func List(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Log.Warn("Environments directory missing", "dir", dir)
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(dir, de.Name())
		fi, err := os.Stat(path)
		if err != nil {
			logger.Log.Warn("Ignored unreadable environment entry", "path", path, "err", err)
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Kind: KindX, Path: path})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Personal.AI order the ending
