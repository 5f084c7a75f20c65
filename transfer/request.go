// Package transfer relays one inbound file to a storage target: it downloads
// the file into scratch storage, uploads it in resumable chunks and keeps the
// originating conversation informed through a single status message.
package transfer

import (
	"context"
	"io"
)

type MediaKind int

const (
	KindDocument MediaKind = iota
	KindVideo
	KindAudio
	KindPhoto
)

func (k MediaKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindPhoto:
		return "photo"
	default:
		return "unknown"
	}
}

// Opener starts the download of the inbound file.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Request is one inbound file event. ID is unique per event and scopes all
// per-transfer bookkeeping.
type Request struct {
	ID        string
	ChatID    int64
	MessageID int

	Kind         MediaKind
	Caption      string
	DeclaredName string
	MimeType     string
	// Size is the announced length of the download; 0 when unknown.
	Size int64

	Open Opener
}

type Stage int

const (
	StageStart Stage = iota
	StageDownloading
	StageUploading
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageDownloading:
		return "downloading"
	case StageUploading:
		return "uploading"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is owned by a single pipeline run and never shared.
type State struct {
	Stage Stage
	Done  int64
	Total int64
}

// Result is either Success or Failure.
type Result interface {
	isResult()
}

type Success struct {
	Name string
	Link string
}

func (Success) isResult() {}
