package tus

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

var defaultSupportedExtensions = Extensions{
	CreationExtension,
	ExpirationExtension,
	ChecksumExtension,
	TerminationExtension,
}

type Options struct {
	Extensions Extensions
	MaxSize    int64
	Clock      func() time.Time
}

type Option func(*Options)

func WithExtensions(extensions Extensions) Option {
	return func(o *Options) {
		o.Extensions = extensions
	}
}

func WithMaxSize(size int64) Option {
	return func(o *Options) {
		o.MaxSize = size
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Clock = now
	}
}

// Controller receives tus uploads and keeps their content under dir.
type Controller struct {
	store      Store
	dir        string
	extensions Extensions
	maxSize    int64
	now        func() time.Time
	locks      *uploadLocks
}

func NewController(s Store, dir string, opts ...Option) *Controller {
	o := Options{
		Extensions: defaultSupportedExtensions,
		Clock:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller{
		store:      s,
		dir:        dir,
		extensions: o.Extensions,
		maxSize:    o.MaxSize,
		now:        o.Clock,
		locks:      newUploadLocks(),
	}
}

// Register mounts the tus endpoints on r, e.g. a "/files" subrouter.
func (c *Controller) Register(r *mux.Router) {
	r.Use(TusResumableHeaderCheck, TusResumableHeaderInjections)
	r.HandleFunc("", c.GetConfig()).Methods(http.MethodOptions)
	r.HandleFunc("", c.CreateUpload()).Methods(http.MethodPost)
	r.HandleFunc("/{file_id}", c.GetOffset()).Methods(http.MethodHead)
	r.HandleFunc("/{file_id}", c.ResumeUpload()).Methods(http.MethodPatch)
	r.HandleFunc("/{file_id}", c.Download()).Methods(http.MethodGet)
	if c.extensions.Enabled(TerminationExtension) {
		r.HandleFunc("/{file_id}", c.Terminate()).Methods(http.MethodDelete)
	}
}

// TusResumableHeaderCheck rejects protocol requests without a supported
// Tus-Resumable header. OPTIONS and GET are not part of the negotiation.
func TusResumableHeaderCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		version := r.Header.Get(TusResumableHeader)
		if version == "" {
			writeError(w, http.StatusBadRequest, errors.New("Tus-Resumable header is missing"))
			return
		}
		for _, v := range SupportedTusVersion {
			if v == version {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set(TusVersionHeader, strings.Join(SupportedTusVersion, ","))
		writeError(w, http.StatusPreconditionFailed, errors.New("Tus version not supported"))
	})
}

func TusResumableHeaderInjections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && r.Method != http.MethodGet {
			w.Header().Set(TusResumableHeader, TusVersion)
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Controller) GetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add(TusVersionHeader, strings.Join(SupportedTusVersion, ","))
		if len(c.extensions) > 0 {
			w.Header().Add(TusExtensionHeader, c.extensions.String())
		}
		if c.maxSize > 0 {
			w.Header().Add(TusMaxSizeHeader, fmt.Sprint(c.maxSize))
		}
		if c.extensions.Enabled(ChecksumExtension) {
			w.Header().Add(TusChecksumAlgorithmHeader, strings.Join(SupportedChecksumAlgorithms, ","))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *Controller) CreateUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UploadDeferLengthHeader) != "" {
			writeError(w, http.StatusNotImplemented, errors.New("Upload-Defer-Length is not supported"))
			return
		}

		size, err := strconv.ParseInt(r.Header.Get(UploadLengthHeader), 10, 64)
		if err != nil || size < 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid Upload-Length header"))
			return
		}
		if c.maxSize > 0 && size > c.maxSize {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("Upload-Length exceeds the maximum size"))
			return
		}

		md, err := ParseMetadata(r.Header.Get(UploadMetadataHeader))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		u := Upload{
			ID:       uuid.New().String(),
			Size:     size,
			Metadata: md,
		}
		u.Path = filepath.Join(c.dir, u.ID)
		if c.extensions.Enabled(ExpirationExtension) {
			u.ExpiresAt = c.now().Add(UploadMaxDuration)
		}

		f, err := os.OpenFile(u.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			log.Error().Err(err).Str("path", u.Path).Msg("unable to create upload file")
			writeError(w, http.StatusInternalServerError, errors.New("unable to create upload"))
			return
		}
		f.Close()
		c.store.Save(u)

		log.Debug().
			Str("file_id", u.ID).
			Int64("upload_length", size).
			Str("filename", u.Filename()).
			Msg("upload created")

		w.Header().Set("Location", path.Join(r.URL.Path, u.ID))
		if !u.ExpiresAt.IsZero() {
			w.Header().Set(UploadExpiresHeader, uploadExpiresAt(u.ExpiresAt))
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func (c *Controller) GetOffset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := c.store.Find(mux.Vars(r)["file_id"])
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		if c.expired(u) {
			w.WriteHeader(http.StatusGone)
			return
		}

		w.Header().Set(UploadOffsetHeader, fmt.Sprint(u.Offset))
		w.Header().Set(UploadLengthHeader, fmt.Sprint(u.Size))
		if len(u.Metadata) > 0 {
			w.Header().Set(UploadMetadataHeader, EncodeMetadata(u.Metadata))
		}
		if !u.ExpiresAt.IsZero() && !u.Complete() {
			w.Header().Set(UploadExpiresHeader, uploadExpiresAt(u.ExpiresAt))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *Controller) ResumeUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := mux.Vars(r)["file_id"]

		if ct := r.Header.Get(ContentTypeHeader); ct != OffsetOctetStream {
			writeError(w, http.StatusUnsupportedMediaType, fmt.Errorf("invalid Content-Type header: expected %s", OffsetOctetStream))
			return
		}

		offset, err := strconv.ParseInt(r.Header.Get(UploadOffsetHeader), 10, 64)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid Upload-Offset header"))
			return
		}

		var sum checksum
		if c.extensions.Enabled(ChecksumExtension) {
			sum, err = newChecksum(r.Header.Get(UploadChecksumHeader))
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}

		// The offset check, the write and the save must not interleave with
		// another request for the same upload.
		unlock := c.locks.lock(fileID)
		defer unlock()

		u, ok := c.store.Find(fileID)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("file not found"))
			return
		}
		if c.expired(u) {
			writeError(w, http.StatusGone, errors.New("file expired"))
			return
		}
		if offset != u.Offset {
			writeError(w, http.StatusConflict, errors.New("Upload-Offset header does not match the current offset"))
			return
		}

		n, err := c.appendChunk(u, r.Body, sum)
		if err != nil {
			var mismatch checksumMismatchError
			var netErr net.Error
			switch {
			case errors.As(err, &mismatch):
				writeError(w, StatusChecksumMismatch, err)
			case errors.As(err, &netErr) && netErr.Timeout():
				log.Warn().Err(err).Str("file_id", fileID).Msg("network timeout while writing chunk")
				writeError(w, http.StatusRequestTimeout, fmt.Errorf("network timeout: %w", err))
			default:
				log.Error().Err(err).Str("file_id", fileID).Msg("error writing chunk")
				writeError(w, http.StatusInternalServerError, errors.New("error writing the chunk"))
			}
			return
		}

		u.Offset += n
		c.store.Save(u)

		log.Debug().
			Str("file_id", fileID).
			Int64("written_size", n).
			Int64("offset", u.Offset).
			Bool("complete", u.Complete()).
			Msg("chunk stored")

		w.Header().Set(UploadOffsetHeader, fmt.Sprint(u.Offset))
		if !u.ExpiresAt.IsZero() && !u.Complete() {
			w.Header().Set(UploadExpiresHeader, uploadExpiresAt(u.ExpiresAt))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Download serves a completed upload under its metadata filename.
func (c *Controller) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := c.store.Find(mux.Vars(r)["file_id"])
		if !ok || !u.Complete() {
			writeError(w, http.StatusNotFound, errors.New("file not found"))
			return
		}
		f, err := os.Open(u.Path)
		if err != nil {
			log.Error().Err(err).Str("path", u.Path).Msg("unable to open upload")
			writeError(w, http.StatusInternalServerError, errors.New("unable to open the file"))
			return
		}
		defer f.Close()

		if ft := u.Metadata["filetype"]; ft != "" {
			w.Header().Set(ContentTypeHeader, ft)
		}
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": u.Filename()}))
		http.ServeContent(w, r, u.Filename(), time.Time{}, f)
	}
}

// Terminate drops an upload and its content, complete or not.
func (c *Controller) Terminate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := mux.Vars(r)["file_id"]
		unlock := c.locks.lock(fileID)
		defer unlock()

		u, ok := c.store.Find(fileID)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("file not found"))
			return
		}
		if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error().Err(err).Str("path", u.Path).Msg("unable to remove upload")
			writeError(w, http.StatusInternalServerError, errors.New("unable to terminate the upload"))
			return
		}
		c.store.Delete(fileID)

		log.Debug().Str("file_id", fileID).Msg("upload terminated")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *Controller) expired(u Upload) bool {
	return c.extensions.Enabled(ExpirationExtension) &&
		!u.Complete() &&
		!u.ExpiresAt.IsZero() &&
		u.ExpiresAt.Before(c.now())
}

// appendChunk writes body at the upload's current offset. On checksum
// mismatch the file is truncated back so the offset stays authoritative.
func (c *Controller) appendChunk(u Upload, body io.Reader, sum checksum) (int64, error) {
	f, err := os.OpenFile(u.Path, os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(u.Offset, io.SeekStart); err != nil {
		return 0, err
	}

	var dst io.Writer = f
	var h hash.Hash
	if sum.Algorithm != "" {
		h = sum.newHash()
		dst = io.MultiWriter(f, h)
	}

	n, err := io.Copy(dst, io.LimitReader(body, u.Size-u.Offset))
	if err != nil {
		return n, err
	}

	if h != nil {
		if got := base64.StdEncoding.EncodeToString(h.Sum(nil)); got != sum.Value {
			if terr := f.Truncate(u.Offset); terr != nil {
				return 0, terr
			}
			return 0, checksumMismatchError{algorithm: sum.Algorithm}
		}
	}
	return n, nil
}

type checksum struct {
	Algorithm string
	Value     string
}

func newChecksum(value string) (checksum, error) {
	if value == "" {
		return checksum{}, nil
	}
	d := strings.Fields(value)
	if len(d) != 2 {
		return checksum{}, errors.New("invalid checksum format")
	}
	for _, algo := range SupportedChecksumAlgorithms {
		if d[0] == algo {
			return checksum{Algorithm: d[0], Value: d[1]}, nil
		}
	}
	return checksum{}, errors.New("unsupported checksum algorithm")
}

func (c checksum) newHash() hash.Hash {
	if c.Algorithm == "sha1" {
		return sha1.New()
	}
	return md5.New()
}

type checksumMismatchError struct {
	algorithm string
}

func (e checksumMismatchError) Error() string {
	return e.algorithm + " checksum mismatch"
}

type cError struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	b, _ := json.Marshal(cError{Message: err.Error()})
	w.Header().Set(ContentTypeHeader, "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
