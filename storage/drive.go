package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive uploads into Google Drive using resumable media uploads. The parent
// identity is a Drive folder id; without one files land in "My Drive".
type Drive struct {
	files *drive.FilesService
}

func NewDrive(svc *drive.Service) *Drive {
	return &Drive{files: svc.Files}
}

// NewDriveService builds a Drive client from an OAuth client secrets file and
// a stored token, or from a service account key when tokenFile is missing.
func NewDriveService(ctx context.Context, credentialsFile, tokenFile string, opts ...option.ClientOption) (*drive.Service, error) {
	secrets, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}

	tok, err := readToken(tokenFile)
	if err != nil {
		opts = append(opts, option.WithCredentialsJSON(secrets), option.WithScopes(drive.DriveFileScope))
		return drive.NewService(ctx, opts...)
	}

	cfg, err := google.ConfigFromJSON(secrets, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse google client secrets: %w", err)
	}
	opts = append(opts, option.WithTokenSource(cfg.TokenSource(ctx, tok)))
	return drive.NewService(ctx, opts...)
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

func (d *Drive) CreateUpload(ctx context.Context, obj Object, parentID string) (Session, error) {
	file := &drive.File{
		Name:     obj.Name,
		MimeType: obj.ContentType,
	}
	if parentID != "" {
		file.Parents = []string{parentID}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &driveSession{
		total:    obj.Size,
		progress: make(chan Progress),
		done:     make(chan driveResult, 1),
		cancel:   cancel,
	}

	mediaOpts := []googleapi.MediaOption{googleapi.ChunkSize(int(obj.chunkSize()))}
	if obj.ContentType != "" {
		mediaOpts = append(mediaOpts, googleapi.ContentType(obj.ContentType))
	}

	call := d.files.Create(file).
		Context(ctx).
		SupportsAllDrives(true).
		Fields("id, name, webViewLink").
		Media(io.NewSectionReader(obj.Content, 0, obj.Size), mediaOpts...).
		ProgressUpdater(func(current, total int64) {
			select {
			case s.progress <- Progress{Sent: current, Total: obj.Size}:
			case <-ctx.Done():
			}
		})

	go func() {
		f, err := call.Do()
		s.done <- driveResult{file: f, err: err}
	}()

	return s, nil
}

type driveResult struct {
	file *drive.File
	err  error
}

// driveSession hands the client library's progress callbacks to the caller
// one at a time, so the upload advances in lockstep with SendNextChunk.
type driveSession struct {
	total    int64
	progress chan Progress
	done     chan driveResult
	cancel   context.CancelFunc
}

func (s *driveSession) SendNextChunk(ctx context.Context) (Progress, *Uploaded, error) {
	select {
	case p := <-s.progress:
		return p, nil, nil
	case res := <-s.done:
		s.cancel()
		if res.err != nil {
			return Progress{}, nil, googleError("drive upload", res.err)
		}
		uploaded := &Uploaded{
			ID:   res.file.Id,
			Name: res.file.Name,
			Link: res.file.WebViewLink,
		}
		return Progress{Sent: s.total, Total: s.total}, uploaded, nil
	case <-ctx.Done():
		s.cancel()
		return Progress{}, nil, ctx.Err()
	}
}

func (s *driveSession) Abort(ctx context.Context) error {
	s.cancel()
	return nil
}
