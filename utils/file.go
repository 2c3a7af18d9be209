package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// TableFileName builds the canonical table file name for an id.
func TableFileName(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%05d%s", id, TableFileSuffix))
}

// TempFileName is the staging name a writer commits from via rename.
func TempFileName(name string) string {
	return name + TempFileSuffix
}

// SyncDir fsyncs a directory so a rename into it is durable.
func SyncDir(dir string) error {
	df, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := df.Sync(); err != nil {
		df.Close()
		return err
	}
	return df.Close()
}
