// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/skillscan/core"
	"github.com/poiesic/skillscan/storage"
)

const (
	defaultBucket      = "skill-resources"
	defaultConcurrency = 5
)

// allowedExtensions is the code/documentation allow-list. Anything else is
// skipped without a network call.
var allowedExtensions = map[string]struct{}{
	"md": {}, "ts": {}, "js": {}, "mjs": {}, "cjs": {}, "tsx": {}, "jsx": {},
	"py": {}, "json": {}, "yaml": {}, "yml": {}, "sh": {}, "sql": {}, "txt": {},
	"xml": {}, "html": {}, "css": {}, "scss": {}, "less": {},
}

var contentTypes = map[string]string{
	"json": "application/json",
	"xml":  "application/xml",
	"html": "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"mjs":  "application/javascript",
	"cjs":  "application/javascript",
	"jsx":  "application/javascript",
}

// ObjectWriter is the slice of the MinIO client the uploader needs.
type ObjectWriter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader,
		objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Connect dials an S3-compatible endpoint and returns a MinIO client
// suitable for NewUploader.
func Connect(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("connect blob store: %w", err)
	}
	return client, nil
}

// Uploader implements storage.ResourceStore over an S3-compatible bucket.
type Uploader struct {
	client      ObjectWriter
	bucket      string
	concurrency int
	pool        *ants.Pool
	logger      *slog.Logger
}

var _ storage.ResourceStore = (*Uploader)(nil)

// Option configures an Uploader. Options that resize the worker pool return
// an error from NewUploader when pool creation fails.
type Option func(*Uploader) error

// WithBucket sets the target bucket. Default is "skill-resources".
func WithBucket(bucket string) Option {
	return func(u *Uploader) error {
		if bucket != "" {
			u.bucket = bucket
		}
		return nil
	}
}

// WithConcurrency sets how many uploads run at once per batch.
func WithConcurrency(n int) Option {
	return func(u *Uploader) error {
		if n < 1 {
			return nil
		}
		u.concurrency = n
		u.pool.Release()
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		u.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) error {
		if logger != nil {
			u.logger = logger
		}
		return nil
	}
}

// NewUploader creates a resource uploader over the given object client.
func NewUploader(client ObjectWriter, opts ...Option) (*Uploader, error) {
	if client == nil {
		return nil, ErrClientRequired
	}

	pool, err := ants.NewPool(defaultConcurrency)
	if err != nil {
		return nil, err
	}

	u := &Uploader{
		client:      client,
		bucket:      defaultBucket,
		concurrency: defaultConcurrency,
		pool:        pool,
		logger:      slog.Default().With("component", "uploader"),
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			u.pool.Release()
			return nil, err
		}
	}
	return u, nil
}

// Close releases the upload worker pool.
func (u *Uploader) Close() {
	u.pool.Release()
}

// UploadResources writes the allow-listed subset of files under the given
// storage prefix. Object names are "{prefix}/{path}"; existing objects are
// overwritten.
func (u *Uploader) UploadResources(ctx context.Context, prefix string, files []core.FileContent) (*storage.UploadResult, error) {
	var candidates []core.FileContent
	for _, file := range files {
		if allowUpload(file.Path) {
			candidates = append(candidates, file)
		}
	}

	result := &storage.UploadResult{Skipped: len(files) - len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	var uploaded, failed atomic.Int64
	var wg sync.WaitGroup

	for _, file := range candidates {
		wg.Add(1)
		submitErr := u.pool.Submit(func() {
			defer wg.Done()
			if err := u.put(ctx, prefix, file); err != nil {
				failed.Add(1)
				u.logger.Debug("resource upload failed",
					"prefix", prefix, "path", file.Path, "error", err)
				return
			}
			uploaded.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
		}
	}
	wg.Wait()

	result.Uploaded = int(uploaded.Load())
	result.Failed = int(failed.Load())
	return result, nil
}

func (u *Uploader) put(ctx context.Context, prefix string, file core.FileContent) error {
	objectName := prefix + "/" + file.Path
	reader := strings.NewReader(file.Content)
	_, err := u.client.PutObject(ctx, u.bucket, objectName, reader,
		int64(len(file.Content)),
		minio.PutObjectOptions{ContentType: contentTypeFor(file.Path)})
	return err
}

func extension(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 || i == len(path)-1 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}

func allowUpload(path string) bool {
	_, ok := allowedExtensions[extension(path)]
	return ok
}

// contentTypeFor maps a file to its MIME type. Text formats without a
// dedicated type fall back to text/plain.
func contentTypeFor(path string) string {
	if ct, ok := contentTypes[extension(path)]; ok {
		return ct
	}
	return "text/plain"
}
