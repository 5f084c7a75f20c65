package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/imrenagi/go-drive-relay/storage"
	"github.com/imrenagi/go-drive-relay/tus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadFile(t *testing.T) {
	router := mux.NewRouter()
	tus.NewController(tus.NewMemoryStore(), t.TempDir()).Register(router.PathPrefix("/files").Subrouter())
	srv := httptest.NewServer(router)
	defer srv.Close()

	content := bytes.Repeat([]byte("relay "), 1000)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	uploader, err := storage.NewTus(srv.URL+"/files", srv.Client())
	require.NoError(t, err)

	uploaded, err := uploadFile(context.Background(), uploader, path, "", "", 1024)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", uploaded.Name)

	resp, err := srv.Client().Get(uploaded.Link)
	require.NoError(t, err)
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUploadFileMissing(t *testing.T) {
	_, err := uploadFile(context.Background(), nil, filepath.Join(t.TempDir(), "nope"), "", "", 1024)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRootCommandWiring(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["bot"])
	assert.True(t, names["upload"])
	assert.True(t, names["serve"])
	assert.NotNil(t, cmd.RunE, "running without a subcommand starts the bot")
}
