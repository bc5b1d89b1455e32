// Package file has helpers for moving files and directory trees on disk.
package file

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Rename renames the file from src to dst. If src and dst can't be renamed
// regularly, the data is copied from src to dst. dst will be overwritten
// if it already exists. src will be removed after all data has been copied
// successfully. Both files exist during copying.
func Rename(src, dst string) error {
	// First try to rename the file
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := Copy(src, dst); err != nil {
		return err
	}

	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to remove source file: %w", err)
	}

	return nil
}

// Copy copies the content and the permission bits of the regular file src to dst.
func Copy(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	destination, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(destination, source); err != nil {
		destination.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy data from source to destination: %w", err)
	}

	return destination.Close()
}

// CopyTree copies the directory src with all its content into dst. Existing
// files in dst are overwritten. Symlinks are recreated with the same target.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}

			os.Remove(target)

			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return Copy(path, target)
		}

		return nil
	})
}

// MoveTree moves the directory src to dst. If src can't be renamed regularly,
// the tree is copied and src is removed afterwards.
func MoveTree(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := CopyTree(src, dst); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	return os.RemoveAll(src)
}
