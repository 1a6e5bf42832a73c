package config

import (
	"os"
	"path/filepath"
)

// DataDir resolves the companion's state directory. PETMEM_DATA_DIR
// wins, then ~/.petmem, then .petmem under the working directory when
// no home directory is known.
func DataDir() string {
	if dir := os.Getenv("PETMEM_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".petmem"
	}
	return filepath.Join(home, ".petmem")
}

// DefaultSnapshotFile is where snapshots land unless configured otherwise
func DefaultSnapshotFile() string {
	return filepath.Join(DataDir(), "snapshots", "petmem.sqlite3")
}

// EnsureDataDirs creates the state directory and its subdirectories
func EnsureDataDirs(dataDir string) error {
	subdirs := []string{
		filepath.Join(dataDir, "logs"),
		filepath.Join(dataDir, "snapshots"),
	}

	for _, subdir := range subdirs {
		if err := os.MkdirAll(subdir, 0755); err != nil {
			return err
		}
	}

	return nil
}
