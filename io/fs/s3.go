package fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/datarhei/shelllogger/glob"
	"github.com/datarhei/shelllogger/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	// Name is the name of the filesystem
	Name            string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	UseSSL          bool

	// Prefix is put in front of every key, e.g. a host name. Optional.
	Prefix string

	// Timeout for each request to the service. Defaults to 30 seconds.
	Timeout time.Duration

	Logger log.Logger
}

type s3Filesystem struct {
	name    string
	bucket  string
	prefix  string
	timeout time.Duration

	client *minio.Client

	logger log.Logger
}

// NewS3Filesystem returns a filesystem that stores the files as objects
// in an S3 bucket. The bucket is created if it doesn't exist.
func NewS3Filesystem(config S3Config) (Filesystem, error) {
	if len(config.Bucket) == 0 {
		return nil, fmt.Errorf("no bucket provided")
	}

	fs := &s3Filesystem{
		name:    config.Name,
		bucket:  config.Bucket,
		prefix:  strings.Trim(config.Prefix, "/"),
		timeout: config.Timeout,
		logger:  config.Logger,
	}

	if fs.timeout <= 0 {
		fs.timeout = 30 * time.Second
	}

	if fs.logger == nil {
		fs.logger = log.New("")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Region: config.Region,
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid s3 endpoint %s: %w", config.Endpoint, err)
	}

	fs.client = client

	fs.logger = fs.logger.WithFields(log.Fields{
		"name":     fs.name,
		"type":     "s3",
		"bucket":   fs.bucket,
		"prefix":   fs.prefix,
		"endpoint": config.Endpoint,
	})

	ctx, cancel := fs.context()
	defer cancel()

	exists, err := client.BucketExists(ctx, fs.bucket)
	if err != nil {
		return nil, fmt.Errorf("can't access bucket %s: %w", fs.bucket, err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, fs.bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, fmt.Errorf("can't create bucket %s: %w", fs.bucket, err)
		}

		fs.logger.Debug().Log("Bucket created")
	}

	return fs, nil
}

func (fs *s3Filesystem) Name() string {
	return fs.name
}

func (fs *s3Filesystem) Type() string {
	return "s3"
}

func (fs *s3Filesystem) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), fs.timeout)
}

// key returns the object key for a path. The root has the prefix as key.
func (fs *s3Filesystem) key(path string) string {
	key := filepath.Clean("/" + path)[1:]

	if len(fs.prefix) == 0 {
		return key
	}

	if len(key) == 0 {
		return fs.prefix
	}

	return fs.prefix + "/" + key
}

// path is the inverse of key.
func (fs *s3Filesystem) path(key string) string {
	if len(fs.prefix) != 0 {
		key = strings.TrimPrefix(key, fs.prefix)
	}

	return "/" + strings.TrimPrefix(key, "/")
}

func (fs *s3Filesystem) Stat(path string) (FileInfo, error) {
	path = filepath.Clean("/" + path)

	dir := &s3FileInfo{
		name:         path,
		dir:          true,
		lastModified: time.Now(),
	}

	if path == "/" {
		return dir, nil
	}

	key := fs.key(path)

	ctx, cancel := fs.context()
	defer cancel()

	stat, err := fs.client.StatObject(ctx, fs.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return &s3FileInfo{
			name:         fs.path(stat.Key),
			size:         stat.Size,
			lastModified: stat.LastModified,
		}, nil
	}

	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return nil, err
	}

	// Directories only exist as prefixes of keys
	for object := range fs.client.ListObjects(ctx, fs.bucket, minio.ListObjectsOptions{
		Prefix:    key + "/",
		Recursive: true,
		MaxKeys:   1,
	}) {
		if object.Err == nil {
			return dir, nil
		}
	}

	return nil, ErrNotExist
}

func (fs *s3Filesystem) ReadFile(path string) ([]byte, error) {
	key := fs.key(path)

	ctx, cancel := fs.context()
	defer cancel()

	object, err := fs.client.GetObject(ctx, fs.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotExist
		}

		return nil, err
	}

	return data, nil
}

func (fs *s3Filesystem) WriteFile(path string, data []byte) (int64, bool, error) {
	key := fs.key(path)

	ctx, cancel := fs.context()
	defer cancel()

	_, err := fs.client.StatObject(ctx, fs.bucket, key, minio.StatObjectOptions{})
	overwrite := err == nil

	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".json") {
		contentType = "application/json"
	}

	info, err := fs.client.PutObject(ctx, fs.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	})
	if err != nil {
		return -1, false, err
	}

	fs.logger.Debug().WithFields(log.Fields{
		"key":       key,
		"overwrite": overwrite,
	}).Log("Stored")

	return info.Size, !overwrite, nil
}

// WriteFileSafe is the same as WriteFile because an object is only visible
// after it has been uploaded completely.
func (fs *s3Filesystem) WriteFileSafe(path string, data []byte) (int64, bool, error) {
	return fs.WriteFile(path, data)
}

func (fs *s3Filesystem) List(path, pattern string) []FileInfo {
	var compiledPattern glob.Glob
	var err error

	if len(pattern) != 0 {
		compiledPattern, err = glob.Compile(pattern, '/')
		if err != nil {
			return nil
		}
	}

	prefix := fs.key(path)
	if len(prefix) != 0 {
		prefix += "/"
	}

	ctx, cancel := fs.context()
	defer cancel()

	files := []FileInfo{}

	for object := range fs.client.ListObjects(ctx, fs.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			fs.logger.Warn().WithError(object.Err).Log("Listing objects failed")
			continue
		}

		name := fs.path(object.Key)

		if compiledPattern != nil && !compiledPattern.Match(name) {
			continue
		}

		files = append(files, &s3FileInfo{
			name:         name,
			size:         object.Size,
			lastModified: object.LastModified,
		})
	}

	return files
}

type s3FileInfo struct {
	name         string
	size         int64
	dir          bool
	lastModified time.Time
}

func (f *s3FileInfo) Name() string {
	return f.name
}

func (f *s3FileInfo) Size() int64 {
	return f.size
}

func (f *s3FileInfo) ModTime() time.Time {
	return f.lastModified
}

func (f *s3FileInfo) IsDir() bool {
	return f.dir
}
