package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"

	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/pkg/utils/filename"
)

var (
	// ErrHeadersAlreadyEmitted is returned by a second EmitHeaders.
	ErrHeadersAlreadyEmitted = errors.New("pipeline: download headers already emitted")
	// ErrHeadersSent is returned when the status line is already on the wire.
	ErrHeadersSent = errors.New("pipeline: response headers already sent")
	// ErrHeadersNotEmitted is returned by Write before EmitHeaders.
	ErrHeadersNotEmitted = errors.New("pipeline: download headers not emitted")
	// ErrHeadersNotSent is returned by Abort before anything was sent.
	ErrHeadersNotSent = errors.New("pipeline: response headers not sent")
)

// ErrorBody is the JSON payload of an error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Emitter owns the response of one download request and enforces the
// ordering between framing, body bytes and error reporting.
//
// Download framing is staged by EmitHeaders and committed by the first body
// Write, so failures before the first byte can still be reported as JSON.
// Once committed, the status can no longer change and the only way to signal
// failure is Abort. An Emitter is not safe for concurrent use.
type Emitter struct {
	w    http.ResponseWriter
	rc   *http.ResponseController
	kind media.Kind
	name string

	framed bool
	sent   bool
	bytes  int64
}

// NewEmitter wraps w.
func NewEmitter(w http.ResponseWriter) *Emitter {
	return &Emitter{w: w, rc: http.NewResponseController(w)}
}

// EmitHeaders stages the download framing for kind. name is the derived
// filename without extension.
func (e *Emitter) EmitHeaders(kind media.Kind, name string) error {
	if e.sent {
		return ErrHeadersSent
	}
	if e.framed {
		return ErrHeadersAlreadyEmitted
	}

	h := e.w.Header()
	h.Set("Content-Type", kind.ContentType())
	h.Set("Content-Disposition", filename.ContentDisposition(name+kind.Extension()))
	h.Set("Access-Control-Expose-Headers", "Content-Disposition")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	// Length is unknown up front; the body is chunked.
	h.Del("Content-Length")

	e.kind = kind
	e.name = name
	e.framed = true
	return nil
}

// Write relays one chunk. The first call sends the 200 status line with the
// staged framing. Every call flushes so the client sees bytes as they arrive.
func (e *Emitter) Write(p []byte) (int, error) {
	if !e.framed {
		return 0, ErrHeadersNotEmitted
	}
	if len(p) == 0 {
		return 0, nil
	}
	e.commit()

	n, err := e.w.Write(p)
	e.bytes += int64(n)
	if err != nil {
		return n, err
	}
	if err := e.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}

// Commit sends the staged framing without a body chunk. It is a no-op once
// headers are sent.
func (e *Emitter) Commit() error {
	if !e.framed {
		return ErrHeadersNotEmitted
	}
	if e.sent {
		return nil
	}
	e.commit()
	if err := e.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func (e *Emitter) commit() {
	if e.sent {
		return
	}
	e.w.WriteHeader(http.StatusOK)
	e.sent = true
}

// EmitError writes a JSON error response. Staged download framing is
// discarded. It fails with ErrHeadersSent once anything was sent.
func (e *Emitter) EmitError(status int, body ErrorBody) error {
	if e.sent {
		return ErrHeadersSent
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	h := e.w.Header()
	h.Del("Content-Disposition")
	h.Del("Access-Control-Expose-Headers")
	h.Set("Content-Type", "application/json; charset=UTF-8")
	h.Set("Cache-Control", "no-store")

	e.framed = false
	e.sent = true
	e.w.WriteHeader(status)
	_, err = e.w.Write(append(b, '\n'))
	return err
}

// Abort tears down the connection after headers were sent so the client can
// tell a truncated body from a complete one. It does not return in that case:
// it panics with http.ErrAbortHandler, which net/http handles silently.
func (e *Emitter) Abort() error {
	if !e.sent {
		return ErrHeadersNotSent
	}
	panic(http.ErrAbortHandler)
}

// HeadersSent reports whether the status line was written.
func (e *Emitter) HeadersSent() bool { return e.sent }

// Framed reports whether download framing is staged or sent.
func (e *Emitter) Framed() bool { return e.framed }

// BytesWritten returns the number of body bytes written by Write.
func (e *Emitter) BytesWritten() int64 { return e.bytes }
