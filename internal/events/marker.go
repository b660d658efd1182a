package events

import (
	"os"
	"path/filepath"
)

// DefaultCrashDir is where the crash reporter drops its marker file.
const DefaultCrashDir = "/data/community/crashes"

// Marker reports whether an external on-disk condition is present.
type Marker interface {
	Present() bool
}

// FileMarker is present when the named path exists and is a regular file.
type FileMarker string

// CrashMarker returns the marker for the crash reporter's error file in dir.
func CrashMarker(dir string) FileMarker {
	if dir == "" {
		dir = DefaultCrashDir
	}
	return FileMarker(filepath.Join(dir, "error.txt"))
}

func (p FileMarker) Present() bool {
	if p == "" {
		return false
	}
	fi, err := os.Stat(string(p))
	return err == nil && fi.Mode().IsRegular()
}
