package logbook

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/datarhei/shelllogger/glob"
	"github.com/datarhei/shelllogger/io/fs"
	"github.com/datarhei/shelllogger/log"
)

// Store persists the documents of finalized trees.
type Store interface {
	// Load reads the document at path.
	Load(path string) ([]byte, error)

	// Save writes the document to path.
	Save(path string, data []byte) error

	// Stat returns info about the document or directory at path.
	Stat(path string) (fs.FileInfo, error)

	// Latest returns the path of the most recently modified document in
	// the stream directories below dir.
	Latest(dir string) (string, error)
}

type StoreConfig struct {
	// Filesystem for the documents. Paths are used as given.
	Filesystem fs.Filesystem

	// Mirrors get a copy of every saved document. The document is stored
	// as <stream dir name>/<document name>. Failures are only logged.
	Mirrors []fs.Filesystem

	Logger log.Logger
}

type store struct {
	fs      fs.Filesystem
	mirrors []fs.Filesystem
	logger  log.Logger

	// Mutex to serialize access to the backend
	lock sync.RWMutex
}

func NewStore(config StoreConfig) (Store, error) {
	s := &store{
		fs:      config.Filesystem,
		mirrors: config.Mirrors,
		logger:  config.Logger,
	}

	if s.fs == nil {
		return nil, fmt.Errorf("no valid filesystem provided")
	}

	if s.logger == nil {
		s.logger = log.New("")
	}

	return s, nil
}

// NewDiskStore returns a store for absolute paths on the local disk.
func NewDiskStore(logger log.Logger) (Store, error) {
	disk, err := fs.NewRootedDiskFilesystem(fs.RootedDiskConfig{
		Name:   "disk",
		Root:   "/",
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return NewStore(StoreConfig{
		Filesystem: disk,
		Logger:     logger,
	})
}

func (s *store) Load(path string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("file", path).Debug().Log("Read document")

	return data, nil
}

func (s *store) Save(path string, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, _, err := s.fs.WriteFileSafe(path, data); err != nil {
		return err
	}

	s.logger.WithField("file", path).Debug().Log("Stored document")

	key := "/" + filepath.Base(filepath.Dir(path)) + "/" + filepath.Base(path)

	for _, mirror := range s.mirrors {
		if _, _, err := mirror.WriteFileSafe(key, data); err != nil {
			s.logger.Warn().WithError(err).WithFields(log.Fields{
				"mirror": mirror.Name(),
				"key":    key,
			}).Log("Mirroring document failed")
			continue
		}

		s.logger.Debug().WithFields(log.Fields{
			"mirror": mirror.Name(),
			"key":    key,
		}).Log("Mirrored document")
	}

	return nil
}

func (s *store) Stat(path string) (fs.FileInfo, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.fs.Stat(path)
}

func (s *store) Latest(dir string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	info, err := s.fs.Stat(dir)
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}

	pattern := glob.QuoteMeta(info.Name()) + "/*/*.json"

	var latest fs.FileInfo

	files := s.fs.List(info.Name(), pattern)

	for _, f := range files {
		if latest == nil || f.ModTime().After(latest.ModTime()) {
			latest = f
			continue
		}

		// Stream directories start with their creation time
		if f.ModTime().Equal(latest.ModTime()) && f.Name() > latest.Name() {
			latest = f
		}
	}

	if latest == nil {
		return "", fmt.Errorf("%s doesn't contain a document", dir)
	}

	if len(files) > 1 {
		s.logger.Debug().WithFields(log.Fields{
			"dir":       dir,
			"documents": len(files),
			"latest":    latest.Name(),
		}).Log("Found several documents")
	}

	return latest.Name(), nil
}
