// Package storage keeps generated audio and exported dialogues on local disk
// and optionally archives them in a GCS bucket.
package storage

import (
	"context"
	"time"
)

// Archiver copies local files to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, localPath string) (string, error)
	List(ctx context.Context) ([]ArchivedObject, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
	Close() error
}

type ArchivedObject struct {
	Name    string
	Size    int64
	Updated time.Time
}
