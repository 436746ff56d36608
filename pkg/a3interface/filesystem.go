package a3interface

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetArmaDir returns the Arma 3 executable directory. It will not account for symlinks.
func GetArmaDir() (string, error) {
	executablePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("error getting executable directory: %w", err)
	}
	return filepath.Dir(executablePath), nil
}

// AddonFolder returns the folder the addon lives in. When the module sits in the
// Arma root, the folder is assumed to be @<addon> below it.
func AddonFolder(armaDir, modulePath, addon string) string {
	dir := filepath.Dir(modulePath)
	if modulePath == "" || dir == filepath.Clean(armaDir) {
		return filepath.Join(armaDir, "@"+addon)
	}
	return dir
}
