package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync/atomic"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCS uploads objects into a single bucket; the parent identity is used as
// an object name prefix.
type GCS struct {
	bucket *gcstorage.BucketHandle
}

func NewGCS(client *gcstorage.Client, bucket string) *GCS {
	return &GCS{bucket: client.Bucket(bucket)}
}

func (g *GCS) CreateUpload(ctx context.Context, obj Object, parentID string) (Session, error) {
	name := obj.Name
	if parentID != "" {
		name = path.Join(parentID, obj.Name)
	}

	// Cancelling the writer's context is how an in-flight upload is abandoned.
	wctx, cancel := context.WithCancel(ctx)
	w := g.bucket.Object(name).NewWriter(wctx)
	w.ChunkSize = int(obj.chunkSize())
	w.ContentType = obj.ContentType

	s := &gcsSession{
		w:      w,
		cancel: cancel,
		bucket: g.bucket.BucketName(),
		name:   name,
		obj:    obj,
		chunk:  obj.chunkSize(),
	}
	w.ProgressFunc = func(n int64) {
		s.acked.Store(n)
	}
	return s, nil
}

type gcsSession struct {
	w      *gcstorage.Writer
	cancel context.CancelFunc
	bucket string
	name   string
	obj    Object
	chunk  int64
	offset int64

	// acked is the byte count the service has confirmed; offset only counts
	// what was handed to the writer.
	acked atomic.Int64
}

func (s *gcsSession) SendNextChunk(ctx context.Context) (Progress, *Uploaded, error) {
	if s.offset < s.obj.Size {
		n := nextChunk(s.offset, s.obj.Size, s.chunk)
		written, err := io.Copy(s.w, io.NewSectionReader(s.obj.Content, s.offset, n))
		s.offset += written
		if err != nil {
			return Progress{}, nil, gcsError("gcs write", err)
		}
		if s.offset < s.obj.Size {
			return Progress{Sent: s.acked.Load(), Total: s.obj.Size}, nil, nil
		}
	}

	err := s.w.Close()
	s.cancel()
	if err != nil {
		return Progress{}, nil, gcsError("gcs finalize", err)
	}

	uploaded := &Uploaded{
		ID:   s.name,
		Name: s.obj.Name,
		Link: gcsLink(s.bucket, s.name),
	}
	if attrs := s.w.Attrs(); attrs != nil {
		uploaded.ID = fmt.Sprintf("%s#%d", attrs.Name, attrs.Generation)
	}
	return Progress{Sent: s.obj.Size, Total: s.obj.Size}, uploaded, nil
}

func (s *gcsSession) Abort(ctx context.Context) error {
	s.cancel()
	return nil
}

func gcsLink(bucket, name string) string {
	u := url.URL{
		Scheme: "https",
		Host:   "storage.cloud.google.com",
		Path:   "/" + bucket + "/" + name,
	}
	return u.String()
}

// gcsError turns storage client failures into a StatusError when the service
// reported one.
func gcsError(op string, err error) error {
	if errors.Is(err, gcstorage.ErrBucketNotExist) || errors.Is(err, gcstorage.ErrObjectNotExist) {
		return &StatusError{Op: op, Code: http.StatusNotFound, Err: err}
	}
	return googleError(op, err)
}

func googleError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &StatusError{Op: op, Code: gerr.Code, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
