package logbook

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/datarhei/shelllogger/io/fs"
	"github.com/datarhei/shelllogger/log"

	"github.com/stretchr/testify/require"
)

type failingFilesystem struct {
	fs.Filesystem
}

func (f *failingFilesystem) WriteFileSafe(path string, data []byte) (int64, bool, error) {
	return -1, false, errors.New("disk full")
}

func newMemFilesystem(t *testing.T, name string) fs.Filesystem {
	memfs, err := fs.NewMemFilesystem(fs.MemConfig{Name: name})
	require.NoError(t, err)

	return memfs
}

func TestNewStoreWithoutFilesystem(t *testing.T) {
	_, err := NewStore(StoreConfig{})
	require.Error(t, err)
}

func TestStoreSaveLoad(t *testing.T) {
	primary := newMemFilesystem(t, "primary")
	mirror := newMemFilesystem(t, "mirror")

	s, err := NewStore(StoreConfig{
		Filesystem: primary,
		Mirrors:    []fs.Filesystem{mirror},
	})
	require.NoError(t, err)

	require.NoError(t, s.Save("/logs/stream/x.json", []byte("{}")))

	data, err := s.Load("/logs/stream/x.json")
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), data)

	data, err = mirror.ReadFile("/stream/x.json")
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), data)

	_, err = s.Load("/logs/stream/y.json")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestStoreMirrorFailure(t *testing.T) {
	buffer := log.NewBufferWriter(log.Lwarn, 10)

	s, err := NewStore(StoreConfig{
		Filesystem: newMemFilesystem(t, "primary"),
		Mirrors:    []fs.Filesystem{&failingFilesystem{newMemFilesystem(t, "broken")}},
		Logger:     log.New("Store").WithOutput(buffer),
	})
	require.NoError(t, err)

	require.NoError(t, s.Save("/logs/stream/x.json", []byte("{}")))

	events := buffer.Events()
	require.Len(t, events, 1)
	require.Equal(t, "broken", events[0].Data["mirror"])
	require.Equal(t, "/stream/x.json", events[0].Data["key"])
}

func TestDiskStore(t *testing.T) {
	s, err := NewDiskStore(nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "doc.json")

	require.NoError(t, s.Save(path, []byte("[]")))

	data, err := s.Load(path)
	require.NoError(t, err)
	require.Equal(t, []byte("[]"), data)
}

func TestStoreLatest(t *testing.T) {
	s, err := NewStore(StoreConfig{
		Filesystem: newMemFilesystem(t, "primary"),
	})
	require.NoError(t, err)

	require.NoError(t, s.Save("/logs/a/first.json", []byte("{}")))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Save("/logs/b/second.json", []byte("{}")))

	// Neither in a stream directory nor a document
	require.NoError(t, s.Save("/logs/top.json", []byte("{}")))
	require.NoError(t, s.Save("/logs/b/deeper/third.json", []byte("{}")))
	require.NoError(t, s.Save("/logs/a/first.txt", []byte("")))

	latest, err := s.Latest("/logs")
	require.NoError(t, err)
	require.Equal(t, "/logs/b/second.json", latest)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Save("/logs/a/first.json", []byte("{}")))

	latest, err = s.Latest("/logs")
	require.NoError(t, err)
	require.Equal(t, "/logs/a/first.json", latest)

	info, err := s.Stat("/logs/a")
	require.NoError(t, err)
	require.True(t, info.IsDir())

	_, err = s.Latest("/logs/a/first.json")
	require.Error(t, err)

	_, err = s.Latest("/logs/b/deeper")
	require.Error(t, err)

	_, err = s.Latest("/missing")
	require.ErrorIs(t, err, fs.ErrNotExist)
}
