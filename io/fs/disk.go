package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datarhei/shelllogger/glob"
	"github.com/datarhei/shelllogger/io/file"
	"github.com/datarhei/shelllogger/log"
)

// RootedDiskConfig is the config required to create a new rooted
// disk filesystem.
type RootedDiskConfig struct {
	// Name of the filesystem
	Name string

	// Root is the path this filesystem is rooted to. All paths are
	// relative to this root.
	Root string

	// For logging, optional
	Logger log.Logger
}

// diskFileInfo implements the FileInfo interface
type diskFileInfo struct {
	name  string
	finfo os.FileInfo
}

func (fi *diskFileInfo) Name() string {
	return fi.name
}

func (fi *diskFileInfo) Size() int64 {
	return fi.finfo.Size()
}

func (fi *diskFileInfo) ModTime() time.Time {
	return fi.finfo.ModTime()
}

func (fi *diskFileInfo) IsDir() bool {
	return fi.finfo.IsDir()
}

// diskFilesystem implements the Filesystem interface
type diskFilesystem struct {
	name string
	root string

	logger log.Logger
}

// NewRootedDiskFilesystem returns a filesystem that is backed by the disk
// below the given root. The root is created if it doesn't exist.
func NewRootedDiskFilesystem(config RootedDiskConfig) (Filesystem, error) {
	fs := &diskFilesystem{
		name:   config.Name,
		logger: config.Logger,
	}

	if fs.logger == nil {
		fs.logger = log.New("")
	}

	if len(config.Root) == 0 {
		return nil, fmt.Errorf("invalid root path provided")
	}

	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating root %s failed: %w", root, err)
	}

	finfo, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	if !finfo.IsDir() {
		return nil, fmt.Errorf("the provided root '%s' must be a directory", root)
	}

	fs.root = root

	fs.logger = fs.logger.WithFields(log.Fields{
		"name": fs.name,
		"type": "disk",
		"root": fs.root,
	})

	return fs, nil
}

func (fs *diskFilesystem) Name() string {
	return fs.name
}

func (fs *diskFilesystem) Type() string {
	return "disk"
}

func (fs *diskFilesystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(fs.cleanPath(path))
}

func (fs *diskFilesystem) Stat(path string) (FileInfo, error) {
	path = fs.cleanPath(path)

	finfo, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &diskFileInfo{
		name:  fs.relative(path),
		finfo: finfo,
	}, nil
}

func (fs *diskFilesystem) WriteFile(path string, data []byte) (int64, bool, error) {
	path = fs.cleanPath(path)

	isNew := true
	if _, err := os.Stat(path); err == nil {
		isNew = false
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return -1, false, fmt.Errorf("creating file failed: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return -1, false, fmt.Errorf("writing file failed: %w", err)
	}

	fs.logger.Debug().WithField("path", path).Log("Stored")

	return int64(len(data)), isNew, nil
}

func (fs *diskFilesystem) WriteFileSafe(path string, data []byte) (int64, bool, error) {
	path = fs.cleanPath(path)
	dir, filename := filepath.Split(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return -1, false, fmt.Errorf("creating file failed: %w", err)
	}

	tmpfile, err := os.CreateTemp(dir, filename)
	if err != nil {
		return -1, false, err
	}

	defer os.Remove(tmpfile.Name())

	size, err := tmpfile.Write(data)
	if err != nil {
		tmpfile.Close()
		return -1, false, err
	}

	if err := tmpfile.Close(); err != nil {
		return -1, false, err
	}

	isNew := true
	if _, err := os.Stat(path); err == nil {
		isNew = false
	}

	if err := file.Rename(tmpfile.Name(), path); err != nil {
		return -1, false, err
	}

	fs.logger.Debug().WithField("path", path).Log("Stored")

	return int64(size), isNew, nil
}

func (fs *diskFilesystem) List(path, pattern string) []FileInfo {
	path = fs.cleanPath(path)
	files := []FileInfo{}

	var compiledPattern glob.Glob
	var err error

	if len(pattern) != 0 {
		compiledPattern, err = glob.Compile(pattern, '/')
		if err != nil {
			return nil
		}
	}

	filepath.Walk(path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			return nil
		}

		mode := info.Mode()
		if !mode.IsRegular() && mode&os.ModeSymlink == 0 {
			return nil
		}

		name := fs.relative(path)

		if compiledPattern != nil && !compiledPattern.Match(name) {
			return nil
		}

		files = append(files, &diskFileInfo{
			name:  name,
			finfo: info,
		})

		return nil
	})

	return files
}

func (fs *diskFilesystem) cleanPath(path string) string {
	return filepath.Join(fs.root, filepath.Clean("/"+path))
}

func (fs *diskFilesystem) relative(path string) string {
	name := strings.TrimPrefix(path, fs.root)
	if len(name) == 0 || name[0] != os.PathSeparator {
		name = string(os.PathSeparator) + name
	}

	return name
}
