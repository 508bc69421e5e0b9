package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultFile is the main config path relative to the project root.
const DefaultFile = "etc/apyscope.yaml"

// ProjectRoot locates the repository root by walking upward from this source
// file until it finds go.mod. Returns the working directory on failure.
func ProjectRoot() (string, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		dir := filepath.Dir(file)
		for i := 0; i < 8; i++ {
			if exists(filepath.Join(dir, "go.mod")) {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", err
	}
	return wd, nil
}

// DefaultPath prefers DefaultFile under the working directory and falls back
// to the copy under the project root.
func DefaultPath() string {
	if exists(DefaultFile) {
		return DefaultFile
	}
	root, _ := ProjectRoot()
	return filepath.Join(root, DefaultFile)
}

func exists(p string) bool { _, err := os.Stat(p); return err == nil }
