package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".json": "application/json",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".txt":  "text/plain; charset=utf-8",
}

var _ Archiver = (*GCSArchiver)(nil)

type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSArchiver(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSArchiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

// Archive uploads localPath under the prefix and returns its gs:// URL.
func (a *GCSArchiver) Archive(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	name := a.objectName(filepath.Base(localPath))
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentTypeFor(localPath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload of %s: %w", name, err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, name), nil
}

func (a *GCSArchiver) List(ctx context.Context) ([]ArchivedObject, error) {
	query := &storage.Query{Prefix: a.listPrefix()}

	var objects []ArchivedObject
	it := a.client.Bucket(a.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		objects = append(objects, ArchivedObject{
			Name:    attrs.Name,
			Size:    attrs.Size,
			Updated: attrs.Updated,
		})
	}

	return objects, nil
}

// Fetch downloads an object. name may be a full gs:// URL or a name relative
// to the prefix.
func (a *GCSArchiver) Fetch(ctx context.Context, name string) ([]byte, error) {
	bucket, object := a.bucket, a.objectName(name)
	if b, o, ok := ParseGSURL(name); ok {
		bucket, object = b, o
	}

	r, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", object, err)
	}
	return data, nil
}

func (a *GCSArchiver) objectName(name string) string {
	if a.prefix == "" || strings.HasPrefix(name, a.prefix+"/") {
		return name
	}
	return path.Join(a.prefix, name)
}

func (a *GCSArchiver) listPrefix() string {
	if a.prefix == "" {
		return ""
	}
	return a.prefix + "/"
}

// ParseGSURL splits gs://bucket/object.
func ParseGSURL(s string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(s, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}

func contentTypeFor(p string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(p))]; ok {
		return ct
	}
	return "application/octet-stream"
}
