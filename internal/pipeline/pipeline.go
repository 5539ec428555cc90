// Package pipeline turns a user supplied video reference into metadata or a
// streamed download: validate, resolve, derive a filename, frame the response,
// open the source (and transcoder), and relay bytes until done or failed.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/internal/metrics"
	"thirdcoast.systems/tubestream/internal/videoid"
	"thirdcoast.systems/tubestream/pkg/utils/filename"
)

// Pipeline wires the collaborators together. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	resolver   media.Resolver
	source     media.Source
	transcoder media.Transcoder

	audio      media.CodecParams
	timestamps bool
	now        func() time.Time
	timeout    time.Duration
	chunkSize  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAudioParams sets the audio transcode parameters.
func WithAudioParams(params media.CodecParams) Option {
	return func(p *Pipeline) {
		if params.BitrateKbps > 0 {
			p.audio.BitrateKbps = params.BitrateKbps
		}
		if params.Format != "" {
			p.audio.Format = params.Format
		}
	}
}

// WithTimestampedFilenames toggles the YYYYMMDD_HHMMSS_ filename prefix.
func WithTimestampedFilenames(enabled bool) Option {
	return func(p *Pipeline) { p.timestamps = enabled }
}

// WithClock sets the time source for filename timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithStreamTimeout bounds a whole download request. Zero disables it.
func WithStreamTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = max(d, 0) }
}

// WithChunkSize sets the relay buffer size.
func WithChunkSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// New returns a Pipeline.
func New(resolver media.Resolver, source media.Source, transcoder media.Transcoder, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:   resolver,
		source:     source,
		transcoder: transcoder,
		audio:      media.DefaultAudioParams,
		timestamps: true,
		now:        time.Now,
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Download is a resolved, not yet opened, download.
type Download struct {
	Kind      media.Kind
	Ref       string // canonical reference handed to the collaborators
	VideoUUID uuid.UUID
	Metadata  *media.Metadata
	Filename  string // without extension
}

type reference struct {
	canonical string
	id        uuid.UUID
}

// validate rejects anything that is not a YouTube video URL and returns the
// canonical form. No collaborator is touched before this passes.
func validate(ref string) (reference, error) {
	if !videoid.IsValidYouTubeURL(ref) {
		return reference{}, media.NewError(media.FailureInvalidReference, media.ErrInvalidReference)
	}
	canonical, domain, err := videoid.NormalizeSourceURL(ref)
	if err != nil {
		return reference{}, media.NewError(media.FailureInvalidReference, fmt.Errorf("%w: %v", media.ErrInvalidReference, err))
	}
	vid, err := videoid.ExtractYouTubeVideoID(canonical)
	if err != nil {
		return reference{}, media.NewError(media.FailureInvalidReference, fmt.Errorf("%w: %v", media.ErrInvalidReference, err))
	}
	return reference{canonical: canonical, id: videoid.VideoUUID(domain, vid)}, nil
}

// RunInfo validates ref and resolves its metadata.
func (p *Pipeline) RunInfo(ctx context.Context, ref string) (*media.Metadata, error) {
	r, err := validate(ref)
	if err != nil {
		return nil, err
	}
	md, err := p.resolver.ResolveMetadata(ctx, r.canonical)
	if err != nil {
		return nil, err
	}
	return md, nil
}

// Prepare validates ref, resolves metadata and derives the filename. It does
// not open any stream.
func (p *Pipeline) Prepare(ctx context.Context, kind media.Kind, ref string) (*Download, error) {
	if !kind.Streams() {
		return nil, media.NewError(media.FailureInternal, fmt.Errorf("pipeline: kind %q does not stream", kind))
	}
	r, err := validate(ref)
	if err != nil {
		return nil, err
	}
	md, err := p.resolver.ResolveMetadata(ctx, r.canonical)
	if err != nil {
		return nil, err
	}
	return &Download{
		Kind:      kind,
		Ref:       r.canonical,
		VideoUUID: r.id,
		Metadata:  md,
		Filename:  filename.Derive(md.Title, p.now(), p.timestamps),
	}, nil
}

// Open starts the stream for a prepared download. Audio is the best audio
// rendition through the transcoder; video is the best progressive rendition
// passed through untouched.
func (p *Pipeline) Open(ctx context.Context, d *Download) (io.ReadCloser, error) {
	switch d.Kind {
	case media.KindAudio:
		src, err := p.source.OpenStream(ctx, d.Ref, media.QualityHighestAudio)
		if err != nil {
			return nil, err
		}
		out, err := p.transcoder.Transcode(ctx, src, p.audio)
		if err != nil {
			_ = src.Close()
			return nil, err
		}
		return &chainedStream{ReadCloser: out, upstream: src}, nil
	case media.KindVideo:
		return p.source.OpenStream(ctx, d.Ref, media.QualityHighest)
	default:
		return nil, media.NewError(media.FailureInternal, fmt.Errorf("pipeline: kind %q does not stream", d.Kind))
	}
}

// RunAudio prepares and opens an audio download.
func (p *Pipeline) RunAudio(ctx context.Context, ref string) (*Download, io.ReadCloser, error) {
	return p.Run(ctx, media.KindAudio, ref)
}

// RunVideo prepares and opens a video download.
func (p *Pipeline) RunVideo(ctx context.Context, ref string) (*Download, io.ReadCloser, error) {
	return p.Run(ctx, media.KindVideo, ref)
}

// Run prepares and opens a download of kind. The caller closes the stream.
func (p *Pipeline) Run(ctx context.Context, kind media.Kind, ref string) (*Download, io.ReadCloser, error) {
	d, err := p.Prepare(ctx, kind, ref)
	if err != nil {
		return nil, nil, err
	}
	rc, err := p.Open(ctx, d)
	if err != nil {
		return nil, nil, err
	}
	return d, rc, nil
}

// Deliver runs a whole download request against em.
//
// Failures before the first body byte become JSON errors. Failures after it
// abort the connection: Deliver then does not return but panics with
// http.ErrAbortHandler once every stream is closed. Client disconnects only
// release resources.
func (p *Pipeline) Deliver(ctx context.Context, kind media.Kind, ref string, em *Emitter) Outcome {
	start := time.Now()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	out, d := p.deliver(ctx, kind, ref, em, start)
	out.Duration = time.Since(start)

	metrics.RecordRequest(string(kind), out.State.String(), string(out.Failure), out.Duration)
	metrics.AddBytesRelayed(string(kind), out.Bytes)
	logOutcome(kind, ref, d, out)

	if out.State == FailedAfterHeaders && out.Failure != media.FailureClientDisconnect {
		_ = em.Abort()
	}
	return out
}

func (p *Pipeline) deliver(ctx context.Context, kind media.Kind, ref string, em *Emitter, start time.Time) (Outcome, *Download) {
	d, err := p.Prepare(ctx, kind, ref)
	if err != nil {
		return p.fail(ctx, em, kind, err, 0), nil
	}

	if err := em.EmitHeaders(kind, d.Filename); err != nil {
		return p.fail(ctx, em, kind, media.NewError(media.FailureInternal, err), 0), d
	}

	rc, err := p.Open(ctx, d)
	if err != nil {
		return p.fail(ctx, em, kind, err, 0), d
	}
	defer rc.Close()

	done := metrics.StreamStarted(string(kind))
	defer done()

	n, err := relay(ctx, rc, em, p.chunkSize, func() {
		metrics.ObserveTimeToFirstByte(string(kind), time.Since(start))
	})
	if err != nil {
		return p.fail(ctx, em, kind, err, n), d
	}
	if err := em.Commit(); err != nil {
		return p.fail(ctx, em, kind, media.NewError(media.FailureClientDisconnect, err), n), d
	}
	return Outcome{State: Success, Bytes: n}, d
}

// fail classifies err and reports it through em if nothing was sent yet.
func (p *Pipeline) fail(ctx context.Context, em *Emitter, kind media.Kind, err error, n int64) Outcome {
	out := Outcome{Failure: classify(ctx, err), Err: err, Bytes: n}
	if em.HeadersSent() {
		out.State = FailedAfterHeaders
		return out
	}

	out.State = FailedBeforeHeaders
	if out.Failure == media.FailureClientDisconnect {
		return out
	}
	status, body := ErrorResponse(kind, out.Failure, err)
	if eerr := em.EmitError(status, body); eerr != nil {
		slog.Debug("pipeline: writing error response failed", "error", eerr)
	}
	return out
}

func logOutcome(kind media.Kind, ref string, d *Download, out Outcome) {
	fields := []any{
		"kind", string(kind),
		"state", out.State.String(),
		"bytes", humanize.Bytes(uint64(max(out.Bytes, 0))),
		"duration", out.Duration,
	}
	if d != nil {
		fields = append(fields, "video_uuid", d.VideoUUID, "ref", d.Ref, "filename", d.Filename+kind.Extension())
	} else {
		fields = append(fields, "ref", ref)
	}
	if out.Err != nil {
		fields = append(fields, "failure", string(out.Failure), "error", out.Err)
	}

	switch {
	case out.State == Success:
		slog.Info("download finished", fields...)
	case out.Failure == media.FailureClientDisconnect, out.Failure == media.FailureInvalidReference:
		slog.Info("download ended early", fields...)
	default:
		slog.Warn("download failed", fields...)
	}
}

// chainedStream closes the upstream source together with the stream built on
// top of it, whatever the outer stream does with its input.
type chainedStream struct {
	io.ReadCloser
	upstream io.Closer
}

func (c *chainedStream) Close() error {
	err := c.ReadCloser.Close()
	_ = c.upstream.Close()
	return err
}
