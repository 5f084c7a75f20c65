package tus_test

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	. "github.com/imrenagi/go-drive-relay/tus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, store Store, opts ...Option) (*mux.Router, string) {
	t.Helper()
	dir := t.TempDir()
	ctrl := NewController(store, dir, opts...)
	router := mux.NewRouter()
	ctrl.Register(router.PathPrefix("/files").Subrouter())
	return router, dir
}

func seed(t *testing.T, dir string, store Store, u Upload, content string) {
	t.Helper()
	u.Path = filepath.Join(dir, u.ID)
	require.NoError(t, os.WriteFile(u.Path, []byte(content), 0o644))
	store.Save(u)
}

func md5Checksum(b []byte) string {
	sum := md5.Sum(b)
	return "md5 " + base64.StdEncoding.EncodeToString(sum[:])
}

func TestGetOffset(t *testing.T) {
	t.Run("HEAD includes Upload-Offset, Upload-Length and forbids caching", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store)
		seed(t, dir, store, Upload{ID: "a", Size: 100, Offset: 19}, strings.Repeat("x", 19))

		req := httptest.NewRequest(http.MethodHead, "/files/a", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "19", w.Header().Get(UploadOffsetHeader))
		assert.Equal(t, "100", w.Header().Get(UploadLengthHeader))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Equal(t, TusVersion, w.Header().Get(TusResumableHeader))
	})

	t.Run("HEAD on an unknown upload returns 404 without an offset", func(t *testing.T) {
		router, _ := newRouter(t, NewMemoryStore())

		req := httptest.NewRequest(http.MethodHead, "/files/missing", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, w.Header().Get(UploadOffsetHeader))
	})

	t.Run("an incomplete upload past its expiry is gone", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		store := NewMemoryStore()
		router, dir := newRouter(t, store, WithClock(func() time.Time { return now }))
		seed(t, dir, store, Upload{ID: "a", Size: 10, ExpiresAt: now.Add(-time.Minute)}, "")

		req := httptest.NewRequest(http.MethodHead, "/files/a", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusGone, w.Code)
	})
}

func TestTusResumableHeader(t *testing.T) {
	t.Run("requests without Tus-Resumable are rejected with 400", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store)
		seed(t, dir, store, Upload{ID: "a", Size: 10}, "")

		req := httptest.NewRequest(http.MethodHead, "/files/a", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, w.Header().Get(UploadOffsetHeader))
	})

	t.Run("unsupported versions are rejected with 412 and the supported list", func(t *testing.T) {
		router, _ := newRouter(t, NewMemoryStore())

		req := httptest.NewRequest(http.MethodHead, "/files/a", nil)
		req.Header.Set(TusResumableHeader, "1.0.1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
		assert.Equal(t, "0.2.0,1.0.0", w.Header().Get(TusVersionHeader))
	})

	t.Run("OPTIONS advertises versions, extensions and checksum algorithms", func(t *testing.T) {
		router, _ := newRouter(t, NewMemoryStore(), WithMaxSize(1024))

		req := httptest.NewRequest(http.MethodOptions, "/files", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "creation,expiration,checksum,termination", w.Header().Get(TusExtensionHeader))
		assert.Equal(t, "1024", w.Header().Get(TusMaxSizeHeader))
		assert.Equal(t, "md5,sha1", w.Header().Get(TusChecksumAlgorithmHeader))
	})
}

func TestCreateUpload(t *testing.T) {
	t.Run("POST creates an upload and returns its location", func(t *testing.T) {
		store := NewMemoryStore()
		router, _ := newRouter(t, store)

		req := httptest.NewRequest(http.MethodPost, "/files", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		req.Header.Set(UploadLengthHeader, "11")
		req.Header.Set(UploadMetadataHeader, EncodeMetadata(Metadata{"filename": "report.pdf"}))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		location := w.Header().Get("Location")
		require.True(t, strings.HasPrefix(location, "/files/"))
		assert.NotEmpty(t, w.Header().Get(UploadExpiresHeader))

		u, ok := store.Find(strings.TrimPrefix(location, "/files/"))
		require.True(t, ok)
		assert.Equal(t, int64(11), u.Size)
		assert.Equal(t, "report.pdf", u.Filename())
	})

	t.Run("uploads larger than Tus-Max-Size are refused", func(t *testing.T) {
		router, _ := newRouter(t, NewMemoryStore(), WithMaxSize(10))

		req := httptest.NewRequest(http.MethodPost, "/files", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		req.Header.Set(UploadLengthHeader, "11")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
	})

	t.Run("deferred length is not implemented", func(t *testing.T) {
		router, _ := newRouter(t, NewMemoryStore())

		req := httptest.NewRequest(http.MethodPost, "/files", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		req.Header.Set(UploadDeferLengthHeader, "1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})
}

func TestResumeUpload(t *testing.T) {
	patch := func(router http.Handler, id string, offset string, body []byte, checksum string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/files/"+id, bytes.NewReader(body))
		req.Header.Set(TusResumableHeader, TusVersion)
		req.Header.Set(ContentTypeHeader, OffsetOctetStream)
		req.Header.Set(UploadOffsetHeader, offset)
		if checksum != "" {
			req.Header.Set(UploadChecksumHeader, checksum)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("chunks append at the offset and the upload becomes downloadable", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store)
		seed(t, dir, store, Upload{ID: "a", Size: 11, Metadata: Metadata{"filename": "hello.txt"}}, "")

		w := patch(router, "a", "0", []byte("hello "), md5Checksum([]byte("hello ")))
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "6", w.Header().Get(UploadOffsetHeader))

		w = patch(router, "a", "6", []byte("world"), "")
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "11", w.Header().Get(UploadOffsetHeader))

		req := httptest.NewRequest(http.MethodGet, "/files/a", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello world", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "hello.txt")
	})

	t.Run("a checksum mismatch leaves the offset untouched", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store)
		seed(t, dir, store, Upload{ID: "a", Size: 5}, "")

		w := patch(router, "a", "0", []byte("hello"), md5Checksum([]byte("other")))
		assert.Equal(t, StatusChecksumMismatch, w.Code)

		u, _ := store.Find("a")
		assert.Equal(t, int64(0), u.Offset)
		fi, err := os.Stat(u.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(0), fi.Size())
	})

	t.Run("a stale offset conflicts", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store)
		seed(t, dir, store, Upload{ID: "a", Size: 10, Offset: 4}, "abcd")

		w := patch(router, "a", "0", []byte("efgh"), "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("concurrent patches at the same offset are applied once", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store)
		seed(t, dir, store, Upload{ID: "a", Size: 8}, "")

		first := &gatedReader{r: strings.NewReader("abcd"), started: make(chan struct{}), release: make(chan struct{})}
		codes := make(chan int, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPatch, "/files/a", first)
			req.Header.Set(TusResumableHeader, TusVersion)
			req.Header.Set(ContentTypeHeader, OffsetOctetStream)
			req.Header.Set(UploadOffsetHeader, "0")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			codes <- w.Code
		}()
		<-first.started

		go func() {
			defer wg.Done()
			codes <- patch(router, "a", "0", []byte("wxyz"), "").Code
		}()
		time.Sleep(50 * time.Millisecond)
		close(first.release)
		wg.Wait()
		close(codes)

		var got []int
		for c := range codes {
			got = append(got, c)
		}
		assert.ElementsMatch(t, []int{http.StatusNoContent, http.StatusConflict}, got)

		u, _ := store.Find("a")
		assert.Equal(t, int64(4), u.Offset)
		content, err := os.ReadFile(u.Path)
		require.NoError(t, err)
		assert.Equal(t, "abcd", string(content))
	})

	t.Run("a wrong content type is unsupported", func(t *testing.T) {
		router, _ := newRouter(t, NewMemoryStore())

		req := httptest.NewRequest(http.MethodPatch, "/files/a", strings.NewReader("x"))
		req.Header.Set(TusResumableHeader, TusVersion)
		req.Header.Set(UploadOffsetHeader, "0")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("an incomplete upload cannot be downloaded", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store)
		seed(t, dir, store, Upload{ID: "a", Size: 10, Offset: 2}, "ab")

		req := httptest.NewRequest(http.MethodGet, "/files/a", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTerminate(t *testing.T) {
	t.Run("DELETE removes the upload and its content", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store)
		seed(t, dir, store, Upload{ID: "a", Size: 10, Offset: 3}, "abc")

		req := httptest.NewRequest(http.MethodDelete, "/files/a", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		_, ok := store.Find("a")
		assert.False(t, ok)
		_, err := os.Stat(filepath.Join(dir, "a"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("DELETE on an unknown upload returns 404", func(t *testing.T) {
		router, _ := newRouter(t, NewMemoryStore())

		req := httptest.NewRequest(http.MethodDelete, "/files/missing", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("without the extension DELETE is not routed", func(t *testing.T) {
		store := NewMemoryStore()
		router, dir := newRouter(t, store, WithExtensions(Extensions{CreationExtension}))
		seed(t, dir, store, Upload{ID: "a", Size: 10}, "")

		req := httptest.NewRequest(http.MethodDelete, "/files/a", nil)
		req.Header.Set(TusResumableHeader, TusVersion)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		_, ok := store.Find("a")
		assert.True(t, ok)
	})
}

func TestMetadata(t *testing.T) {
	t.Run("encoded metadata parses back and keys without values are kept", func(t *testing.T) {
		header := EncodeMetadata(Metadata{"filename": "a b.txt", "is_confidential": ""})
		assert.Equal(t, "filename YSBiLnR4dA==,is_confidential", header)

		md, err := ParseMetadata(header)
		require.NoError(t, err)
		assert.Equal(t, Metadata{"filename": "a b.txt", "is_confidential": ""}, md)
	})

	t.Run("values that are not base64 are rejected", func(t *testing.T) {
		_, err := ParseMetadata("filename !!!")
		assert.Error(t, err)
	})
}

// gatedReader signals its first read and then blocks until released.
type gatedReader struct {
	r       io.Reader
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedReader) Read(p []byte) (int, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.r.Read(p)
}
