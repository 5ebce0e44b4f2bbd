package provision

import (
	"os"
	"path/filepath"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// FindJavaHome locates the directory holding bin/java inside an extracted
// JDK. Vendors either put bin/ at the top, wrap everything in a single
// versioned folder, or (on macOS) nest it under Contents/Home.
func FindJavaHome(dir, goos string) (string, error) {
	java := "java"
	if goos == "windows" {
		java = "java.exe"
	}
	candidates := []string{dir, filepath.Join(dir, "Contents", "Home")}
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			sub := filepath.Join(dir, e.Name())
			candidates = append(candidates, sub, filepath.Join(sub, "Contents", "Home"))
		}
	}
	for _, c := range candidates {
		info, err := os.Stat(filepath.Join(c, "bin", java))
		if err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", errors.New(errors.ErrCodeNotFound, "no bin/%s under %s", java, dir)
}
