package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/imrenagi/go-drive-relay/tus"
	"github.com/rs/zerolog"
)

// Tus uploads to any tus 1.0.0 server supporting the creation extension.
type Tus struct {
	endpoint *url.URL
	client   *http.Client
}

func NewTus(endpoint string, client *http.Client) (*Tus, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid tus endpoint: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Tus{endpoint: u, client: client}, nil
}

func (t *Tus) CreateUpload(ctx context.Context, obj Object, parentID string) (Session, error) {
	md := tus.Metadata{"filename": obj.Name}
	if obj.ContentType != "" {
		md["filetype"] = obj.ContentType
	}
	if parentID != "" {
		md["parent"] = parentID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(tus.TusResumableHeader, tus.TusVersion)
	req.Header.Set(tus.UploadLengthHeader, strconv.FormatInt(obj.Size, 10))
	req.Header.Set(tus.UploadMetadataHeader, tus.EncodeMetadata(md))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tus create: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return nil, &StatusError{Op: "tus create", Code: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil || loc.String() == "" {
		return nil, errors.New("tus create: response carries no usable Location")
	}
	location := t.endpoint.ResolveReference(loc)

	zerolog.Ctx(ctx).Debug().
		Str("location", location.String()).
		Int64("size", obj.Size).
		Msg("tus upload created")

	return &tusSession{
		client:   t.client,
		location: location.String(),
		obj:      obj,
		chunk:    obj.chunkSize(),
	}, nil
}

type tusSession struct {
	client   *http.Client
	location string
	obj      Object
	chunk    int64
	offset   int64
}

func (s *tusSession) SendNextChunk(ctx context.Context) (Progress, *Uploaded, error) {
	if s.offset >= s.obj.Size {
		return s.done()
	}

	n := nextChunk(s.offset, s.obj.Size, s.chunk)
	buf := make([]byte, n)
	if _, err := s.obj.Content.ReadAt(buf, s.offset); err != nil && !errors.Is(err, io.EOF) {
		return Progress{}, nil, fmt.Errorf("read chunk at %d: %w", s.offset, err)
	}
	sum := md5.Sum(buf)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.location, bytes.NewReader(buf))
	if err != nil {
		return Progress{}, nil, err
	}
	req.ContentLength = n
	req.Header.Set(tus.TusResumableHeader, tus.TusVersion)
	req.Header.Set(tus.ContentTypeHeader, tus.OffsetOctetStream)
	req.Header.Set(tus.UploadOffsetHeader, strconv.FormatInt(s.offset, 10))
	req.Header.Set(tus.UploadChecksumHeader, "md5 "+base64.StdEncoding.EncodeToString(sum[:]))

	resp, err := s.client.Do(req)
	if err != nil {
		return Progress{}, nil, fmt.Errorf("tus patch: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return Progress{}, nil, &StatusError{Op: "tus patch", Code: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	offset, err := strconv.ParseInt(resp.Header.Get(tus.UploadOffsetHeader), 10, 64)
	if err != nil {
		return Progress{}, nil, fmt.Errorf("tus patch: invalid Upload-Offset in response: %w", err)
	}
	if offset <= s.offset {
		return Progress{}, nil, fmt.Errorf("tus patch: offset did not advance past %d", s.offset)
	}
	s.offset = offset

	if s.offset >= s.obj.Size {
		return s.done()
	}
	return Progress{Sent: s.offset, Total: s.obj.Size}, nil, nil
}

func (s *tusSession) done() (Progress, *Uploaded, error) {
	p := Progress{Sent: s.obj.Size, Total: s.obj.Size}
	return p, &Uploaded{ID: s.location, Name: s.obj.Name, Link: s.location}, nil
}

// Abort terminates the upload on the receiver. Receivers without the
// termination extension answer 404 or 405 and expire the upload on their own.
func (s *tusSession) Abort(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.location, nil)
	if err != nil {
		return err
	}
	req.Header.Set(tus.TusResumableHeader, tus.TusVersion)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("tus terminate: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound, http.StatusMethodNotAllowed:
		return nil
	default:
		return &StatusError{Op: "tus terminate", Code: resp.StatusCode, Err: errors.New(resp.Status)}
	}
}
