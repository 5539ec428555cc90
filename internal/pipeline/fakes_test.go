package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"thirdcoast.systems/tubestream/internal/media"
)

var errBrokenPipe = errors.New("write: broken pipe")

// fakeStream yields data, then err (io.EOF when nil). With block set it
// blocks after data until ctx is done.
type fakeStream struct {
	ctx    context.Context
	r      *bytes.Reader
	err    error
	block  bool
	closed atomic.Int32
	reads  atomic.Int32
	log    *eventLog
}

func newFakeStream(ctx context.Context, data []byte, err error) *fakeStream {
	return &fakeStream{ctx: ctx, r: bytes.NewReader(data), err: err}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if s.closed.Load() > 0 {
		return 0, errors.New("read on closed stream")
	}
	s.reads.Add(1)
	if s.log != nil {
		s.log.add("read")
	}
	if s.r.Len() > 0 {
		return s.r.Read(p)
	}
	if s.block {
		<-s.ctx.Done()
		return 0, s.ctx.Err()
	}
	if s.err != nil {
		return 0, s.err
	}
	return 0, io.EOF
}

func (s *fakeStream) Close() error {
	s.closed.Add(1)
	return nil
}

func (s *fakeStream) isClosed() bool { return s.closed.Load() > 0 }

type fakeResolver struct {
	md    *media.Metadata
	err   error
	calls atomic.Int32
	ref   string
}

func (r *fakeResolver) ResolveMetadata(ctx context.Context, ref string) (*media.Metadata, error) {
	r.calls.Add(1)
	r.ref = ref
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.md, nil
}

type fakeSource struct {
	newStream func(ctx context.Context) *fakeStream
	openErr   error
	calls     atomic.Int32
	quality   media.Quality
	ref       string
	opened    []*fakeStream
}

func (s *fakeSource) OpenStream(ctx context.Context, ref string, q media.Quality) (io.ReadCloser, error) {
	s.calls.Add(1)
	s.quality = q
	s.ref = ref
	if s.openErr != nil {
		return nil, s.openErr
	}
	st := s.newStream(ctx)
	s.opened = append(s.opened, st)
	return st, nil
}

// fakeTranscoder passes input through and fails with a transcode error after
// failAfter bytes when failAfter > 0.
type fakeTranscoder struct {
	startErr  error
	failAfter int64
	calls     atomic.Int32
	params    media.CodecParams
	out       *transcodeFake
}

func (t *fakeTranscoder) Transcode(ctx context.Context, in io.ReadCloser, params media.CodecParams) (io.ReadCloser, error) {
	t.calls.Add(1)
	t.params = params
	if t.startErr != nil {
		_ = in.Close()
		return nil, t.startErr
	}
	t.out = &transcodeFake{in: in, failAfter: t.failAfter}
	return t.out, nil
}

type transcodeFake struct {
	in        io.ReadCloser
	failAfter int64
	n         int64
	closed    atomic.Int32
}

func (t *transcodeFake) Read(p []byte) (int, error) {
	if t.failAfter > 0 {
		if t.n >= t.failAfter {
			return 0, media.NewError(media.FailureTranscode, errors.New("ffmpeg: exit status 1: Conversion failed!"))
		}
		if rem := t.failAfter - t.n; int64(len(p)) > rem {
			p = p[:rem]
		}
	}
	n, err := t.in.Read(p)
	t.n += int64(n)
	return n, err
}

func (t *transcodeFake) Close() error {
	t.closed.Add(1)
	return t.in.Close()
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(ev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// sink is an instrumented http.ResponseWriter.
type sink struct {
	header         http.Header
	headerAtCommit http.Header
	status         int
	body           bytes.Buffer
	failWrites     bool
	log            *eventLog
}

func newSink() *sink {
	return &sink{header: http.Header{}, log: &eventLog{}}
}

func (s *sink) Header() http.Header { return s.header }

func (s *sink) WriteHeader(code int) {
	if s.status != 0 {
		return
	}
	s.log.add("header")
	s.status = code
	s.headerAtCommit = s.header.Clone()
}

func (s *sink) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.WriteHeader(http.StatusOK)
	}
	s.log.add("write")
	if s.failWrites {
		return 0, errBrokenPipe
	}
	return s.body.Write(p)
}

func (s *sink) Flush() {
	s.log.add("flush")
}
