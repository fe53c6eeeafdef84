package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// genomeSuffixes are the file names treated as staged genomes.
var genomeSuffixes = []string{".fna", ".fna.gz", ".fa", ".fa.gz", ".fasta", ".fasta.gz"}

// Area is a staging directory.
type Area struct {
	Root string
}

// New returns the staging area rooted at root.
func New(root string) *Area {
	return &Area{Root: root}
}

// Ensure creates the staging directory if it does not exist.
// Calling it on an existing directory is a no-op.
func (a *Area) Ensure() error {
	if err := os.MkdirAll(a.Root, 0755); err != nil {
		return fmt.Errorf("create staging area %s: %w", a.Root, err)
	}
	return nil
}

// Exists reports whether the staging directory is present.
func (a *Area) Exists() bool {
	info, err := os.Stat(a.Root)
	return err == nil && info.IsDir()
}

// Genomes returns every staged genome file under the area, sorted.
// Temporary files left by an interrupted expansion are ignored.
func (a *Area) Genomes() ([]string, error) {
	var files []string
	err := filepath.WalkDir(a.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && IsGenome(path) {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan staging area: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Remove deletes the staging area and everything in it.
func (a *Area) Remove() error {
	if err := os.RemoveAll(a.Root); err != nil {
		return fmt.Errorf("remove staging area %s: %w", a.Root, err)
	}
	return nil
}

// IsGenome reports whether path names a FASTA genome file, compressed or not.
func IsGenome(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, suffix := range genomeSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
