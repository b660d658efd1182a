package params

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir stores one file per key under a directory. It backs the persisted
// settings written by the vehicle UI.
type Dir struct {
	dir string
}

// NewDir opens a Dir store without creating anything. A missing directory
// reads as empty; Put creates it on first write.
func NewDir(dir string) (*Dir, error) {
	fi, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	case !fi.IsDir():
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &Dir{dir: dir}, nil
}

func (d *Dir) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(d.dir, key), nil
}

func (d *Dir) Get(key string) (string, error) {
	fn, err := d.path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read %s: %w", fn, err)
	}
	return string(data), nil
}

// Put writes through a temp file and rename so readers never see a partial value.
func (d *Dir) Put(key, value string) error {
	fn, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", d.dir, err)
	}
	tmp, err := os.CreateTemp(d.dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), fn); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", fn, err)
	}
	return nil
}

func (d *Dir) Remove(key string) error {
	fn, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fn); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", fn, err)
	}
	return nil
}
