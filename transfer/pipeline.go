package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/imrenagi/go-drive-relay/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*Pipeline)

// WithDestination sets the parent identity uploads are created under.
func WithDestination(id string) Option {
	return func(p *Pipeline) {
		p.destination = id
	}
}

func WithScratchDir(dir string) Option {
	return func(p *Pipeline) {
		p.scratchDir = dir
	}
}

func WithChunkSize(size int64) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

func WithThrottler(t *Throttler) Option {
	return func(p *Pipeline) {
		p.throttler = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline runs transfers. Run is safe for concurrent use; every call owns
// its State, scratch file and status message.
type Pipeline struct {
	messenger   Messenger
	uploader    storage.Uploader
	throttler   *Throttler
	destination string
	scratchDir  string
	chunkSize   int64
	now         func() time.Time
	metrics     instruments
}

func NewPipeline(m Messenger, u storage.Uploader, opts ...Option) *Pipeline {
	p := &Pipeline{
		messenger: m,
		uploader:  u,
		throttler: NewThrottler(DefaultNotifyInterval, DefaultNotifyStep),
		chunkSize: storage.DefaultChunkSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metrics = newInstruments()
	return p
}

// Destination is the configured parent identity, empty for the default root.
func (p *Pipeline) Destination() string {
	return p.destination
}

// Run executes one transfer to completion and reports the outcome to the
// originating conversation. It never returns an error; failures are part of
// the Result.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	start := p.now()
	logger := log.With().
		Str("transfer_id", req.ID).
		Int64("chat_id", req.ChatID).
		Str("media_kind", req.Kind.String()).
		Logger()
	ctx = logger.WithContext(ctx)

	ctx, span := tracer.Start(ctx, "transfer.Run", trace.WithAttributes(
		attribute.String("transfer.id", req.ID),
		attribute.String("transfer.media_kind", req.Kind.String()),
		attribute.Int64("transfer.size", req.Size),
	))
	defer span.End()
	defer p.throttler.Release(req.ID)

	st := &State{Stage: StageStart, Total: req.Size}
	n := NewNotifier(p.messenger, req.ChatID, req.MessageID)
	if err := n.Start(ctx, downloadingText); err != nil {
		logger.Warn().Err(err).Msg("unable to send status message")
	}

	res := p.run(ctx, req, st, n)

	var text string
	switch r := res.(type) {
	case Success:
		st.Stage = StageDone
		text = successText(r)
		logger.Info().Str("name", r.Name).Str("link", r.Link).Msg("transfer done")
	case Failure:
		st.Stage = StageFailed
		text = r.Message(p.destination)
		span.SetStatus(codes.Error, r.Error())
		logger.Error().
			Str("failure", r.Kind.String()).
			Int("status", r.Code).
			Str("detail", r.Detail).
			Msg("transfer failed")
	}

	if err := n.Report(ctx, text); err != nil {
		logger.Error().Err(err).Msg("unable to report transfer outcome")
	}

	var uploaded int64
	if st.Stage == StageDone {
		uploaded = st.Total
	}
	p.metrics.record(ctx, res, req.Kind, uploaded, p.now().Sub(start))
	return res
}

func (p *Pipeline) run(ctx context.Context, req Request, st *State, n *Notifier) Result {
	scratch, err := p.download(ctx, req, st, n)
	if err != nil {
		return Classify(err)
	}
	defer removeScratch(ctx, scratch)

	return p.upload(ctx, req, st, n, scratch)
}

func (p *Pipeline) download(ctx context.Context, req Request, st *State, n *Notifier) (*os.File, error) {
	ctx, span := tracer.Start(ctx, "transfer.download")
	defer span.End()

	st.Stage = StageDownloading
	if req.Open == nil {
		return nil, errors.New("nothing to download")
	}
	body, err := req.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open download: %w", err)
	}
	defer body.Close()

	f, err := os.CreateTemp(p.scratchDir, "relay-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}

	w := &progressWriter{
		w: f,
		onWrite: func(done int64) {
			st.Done = done
			p.notifyProgress(ctx, n, req.ID, TimeGate, Sample{Done: done, Total: req.Size, At: p.now()}, downloadProgressText)
		},
	}
	written, err := io.Copy(w, body)
	if err == nil && req.Size > 0 && written < req.Size {
		err = fmt.Errorf("received %d of %d bytes: %w", written, req.Size, io.ErrUnexpectedEOF)
	}
	if err != nil {
		removeScratch(ctx, f)
		return nil, fmt.Errorf("download: %w", err)
	}

	st.Total = written
	zerolog.Ctx(ctx).Debug().
		Int64("written_size", written).
		Str("scratch_file", f.Name()).
		Msg("download complete")
	return f, nil
}

func (p *Pipeline) upload(ctx context.Context, req Request, st *State, n *Notifier, scratch *os.File) Result {
	ctx, span := tracer.Start(ctx, "transfer.upload")
	defer span.End()
	logger := zerolog.Ctx(ctx)

	st.Stage = StageUploading
	st.Done = 0
	name := ResolveName(req)
	contentType := req.MimeType
	if contentType == "" {
		if mt, err := mimetype.DetectFile(scratch.Name()); err == nil {
			contentType = mt.String()
		}
	}
	span.SetAttributes(attribute.String("transfer.name", name))

	if outcome, err := n.Update(ctx, uploadingText); err != nil {
		logger.Debug().Err(err).Str("outcome", outcome.String()).Msg("status update dropped")
	}
	p.throttler.RecordNotified(req.ID, Sample{Total: st.Total, At: p.now()})

	session, err := p.uploader.CreateUpload(ctx, storage.Object{
		Name:        name,
		ContentType: contentType,
		Size:        st.Total,
		Content:     scratch,
		ChunkSize:   p.chunkSize,
	}, p.destination)
	if err != nil {
		return Classify(err)
	}

	for {
		progress, uploaded, err := session.SendNextChunk(ctx)
		if err != nil {
			if aerr := session.Abort(context.WithoutCancel(ctx)); aerr != nil {
				logger.Warn().Err(aerr).Msg("unable to abort upload session")
			}
			return Classify(err)
		}
		if uploaded != nil {
			st.Done = st.Total
			return Success{Name: name, Link: uploaded.Link}
		}

		st.Done = progress.Sent
		p.notifyProgress(ctx, n, req.ID, TimeAndPercentGate, Sample{Done: progress.Sent, Total: st.Total, At: p.now()}, uploadProgressText)
	}
}

func (p *Pipeline) notifyProgress(ctx context.Context, n *Notifier, id string, gate Gate, s Sample, render func(Sample) string) {
	if !p.throttler.ShouldNotify(id, gate, s) {
		return
	}
	p.throttler.RecordNotified(id, s)
	if outcome, err := n.Update(ctx, render(s)); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("outcome", outcome.String()).Msg("progress update dropped")
	}
}

func removeScratch(ctx context.Context, f *os.File) {
	logger := zerolog.Ctx(ctx)
	if err := f.Close(); err != nil {
		logger.Warn().Err(err).Str("scratch_file", f.Name()).Msg("unable to close scratch file")
	}
	if err := os.Remove(f.Name()); err != nil {
		logger.Warn().Err(err).Str("scratch_file", f.Name()).Msg("unable to remove scratch file")
	}
}

// progressWriter reports the cumulative number of bytes written after every
// write.
type progressWriter struct {
	w       io.Writer
	done    int64
	onWrite func(done int64)
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	n, err := pw.w.Write(b)
	pw.done += int64(n)
	if n > 0 {
		pw.onWrite(pw.done)
	}
	return n, err
}
