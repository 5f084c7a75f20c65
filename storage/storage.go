package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the size of a single resumable upload chunk.
const DefaultChunkSize int64 = 5 * 1024 * 1024

// Object describes the content handed to a storage target.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.ReaderAt
	ChunkSize   int64
}

func (o Object) chunkSize() int64 {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

// Progress is the cumulative amount of bytes acknowledged by the target.
type Progress struct {
	Sent  int64
	Total int64
}

// Uploaded is returned once the target has committed the whole object.
type Uploaded struct {
	ID   string
	Name string
	Link string
}

//go:generate mockgen -destination=../mocks/mock_storage.go -package=mocks github.com/imrenagi/go-drive-relay/storage Uploader,Session

type Uploader interface {
	CreateUpload(ctx context.Context, obj Object, parentID string) (Session, error)
}

// Session is a chunked resumable upload in progress. SendNextChunk returns a
// non-nil *Uploaded exactly once, on the call that completes the upload.
type Session interface {
	SendNextChunk(ctx context.Context) (Progress, *Uploaded, error)
	Abort(ctx context.Context) error
}

// StatusError is a failure reported by the remote service with a status code.
type StatusError struct {
	Op   string
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Op, e.Code, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode returns the status code carried by err, if any.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

func nextChunk(offset, size, chunk int64) int64 {
	remaining := size - offset
	if remaining < chunk {
		return remaining
	}
	return chunk
}
