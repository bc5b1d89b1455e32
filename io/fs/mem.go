package fs

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/datarhei/shelllogger/glob"
	"github.com/datarhei/shelllogger/log"
)

// MemConfig is the config that is required for creating
// a new memory filesystem.
type MemConfig struct {
	// Name of the filesystem
	Name string

	// For logging, optional
	Logger log.Logger
}

type memFileInfo struct {
	name    string
	size    int64
	dir     bool
	lastMod time.Time
}

func (f *memFileInfo) Name() string {
	return f.name
}

func (f *memFileInfo) Size() int64 {
	return f.size
}

func (f *memFileInfo) ModTime() time.Time {
	return f.lastMod
}

func (f *memFileInfo) IsDir() bool {
	return f.dir
}

type memFile struct {
	data    []byte
	lastMod time.Time
}

type memFilesystem struct {
	name string

	files map[string]*memFile
	dirs  map[string]struct{}
	lock  sync.RWMutex

	logger log.Logger
}

// NewMemFilesystem creates a new filesystem in memory that implements
// the Filesystem interface.
func NewMemFilesystem(config MemConfig) (Filesystem, error) {
	fs := &memFilesystem{
		name:   config.Name,
		files:  map[string]*memFile{},
		dirs:   map[string]struct{}{},
		logger: config.Logger,
	}

	if fs.logger == nil {
		fs.logger = log.New("")
	}

	fs.logger = fs.logger.WithFields(log.Fields{
		"name": fs.name,
		"type": "mem",
	})

	fs.logger.Debug().Log("Created")

	return fs, nil
}

func (fs *memFilesystem) Name() string {
	return fs.name
}

func (fs *memFilesystem) Type() string {
	return "mem"
}

func (fs *memFilesystem) ReadFile(path string) ([]byte, error) {
	path = fs.cleanPath(path)

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	file, ok := fs.files[path]
	if !ok {
		if fs.isDir(path) {
			return nil, ErrIsDir
		}

		return nil, ErrNotExist
	}

	return append([]byte{}, file.data...), nil
}

func (fs *memFilesystem) Stat(path string) (FileInfo, error) {
	path = fs.cleanPath(path)

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if file, ok := fs.files[path]; ok {
		return &memFileInfo{
			name:    path,
			size:    int64(len(file.data)),
			lastMod: file.lastMod,
		}, nil
	}

	if fs.isDir(path) {
		return &memFileInfo{
			name:    path,
			dir:     true,
			lastMod: time.Now(),
		}, nil
	}

	return nil, ErrNotExist
}

func (fs *memFilesystem) WriteFile(path string, data []byte) (int64, bool, error) {
	path = fs.cleanPath(path)

	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.isDir(path) {
		return -1, false, ErrIsDir
	}

	_, replace := fs.files[path]

	fs.files[path] = &memFile{
		data:    append([]byte{}, data...),
		lastMod: time.Now(),
	}

	fs.addDir(filepath.Dir(path))

	fs.logger.Debug().WithFields(log.Fields{
		"path":    path,
		"size":    len(data),
		"replace": replace,
	}).Log("Stored")

	return int64(len(data)), !replace, nil
}

// WriteFileSafe is the same as WriteFile because the file is replaced atomically.
func (fs *memFilesystem) WriteFileSafe(path string, data []byte) (int64, bool, error) {
	return fs.WriteFile(path, data)
}

func (fs *memFilesystem) List(path, pattern string) []FileInfo {
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

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	for name, file := range fs.files {
		if path != "/" && name != path && !strings.HasPrefix(name, path+"/") {
			continue
		}

		if compiledPattern != nil && !compiledPattern.Match(name) {
			continue
		}

		files = append(files, &memFileInfo{
			name:    name,
			size:    int64(len(file.data)),
			lastMod: file.lastMod,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() < files[j].Name()
	})

	return files
}

// isDir must be called with the lock held.
func (fs *memFilesystem) isDir(path string) bool {
	if path == "/" {
		return true
	}

	if _, ok := fs.dirs[path]; ok {
		return true
	}

	return false
}

// addDir must be called with the write lock held.
func (fs *memFilesystem) addDir(path string) {
	for path != "/" {
		fs.dirs[path] = struct{}{}
		path = filepath.Dir(path)
	}
}

func (fs *memFilesystem) cleanPath(path string) string {
	return filepath.Join("/", filepath.Clean(path))
}
