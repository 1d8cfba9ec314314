package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsageBytes returns the combined size of the given files and directories.
// Empty and missing paths count as zero. For a SQLite path the -wal and -shm
// sidecars are included when present.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
		for _, suffix := range []string{"-wal", "-shm"} {
			n, err := pathSize(p + suffix)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
