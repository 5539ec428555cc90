package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/tubestream/internal/media"
)

func TestEmitter_EmitHeadersTwiceFails(t *testing.T) {
	em := NewEmitter(httptest.NewRecorder())

	require.NoError(t, em.EmitHeaders(media.KindAudio, "a"))
	require.ErrorIs(t, em.EmitHeaders(media.KindAudio, "a"), ErrHeadersAlreadyEmitted)

	_, err := em.Write([]byte("x"))
	require.NoError(t, err)
	require.ErrorIs(t, em.EmitHeaders(media.KindVideo, "b"), ErrHeadersSent)
}

func TestEmitter_WriteRequiresFraming(t *testing.T) {
	s := newSink()
	em := NewEmitter(s)

	n, err := em.Write([]byte("body"))
	require.ErrorIs(t, err, ErrHeadersNotEmitted)
	assert.Zero(t, n)
	assert.Empty(t, s.log.list(), "nothing may reach the wire before framing")
	assert.ErrorIs(t, em.Commit(), ErrHeadersNotEmitted)
}

func TestEmitter_HeadersCommitBeforeFirstBodyByte(t *testing.T) {
	s := newSink()
	em := NewEmitter(s)

	require.NoError(t, em.EmitHeaders(media.KindAudio, "20240501_102030_Test Video"))
	assert.Empty(t, s.log.list(), "EmitHeaders only stages framing")
	assert.False(t, em.HeadersSent())
	assert.True(t, em.Framed())

	_, err := em.Write([]byte("chunk-1"))
	require.NoError(t, err)
	_, err = em.Write([]byte("chunk-2"))
	require.NoError(t, err)

	assert.Equal(t, []string{"header", "write", "flush", "write", "flush"}, s.log.list())
	assert.Equal(t, http.StatusOK, s.status)
	assert.Equal(t, "audio/mpeg", s.headerAtCommit.Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="20240501_102030_Test Video.mp3"; filename*=UTF-8''20240501_102030_Test%20Video.mp3`,
		s.headerAtCommit.Get("Content-Disposition"))
	assert.Equal(t, "Content-Disposition", s.headerAtCommit.Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "no-store", s.headerAtCommit.Get("Cache-Control"))
	assert.Equal(t, "nosniff", s.headerAtCommit.Get("X-Content-Type-Options"))
	assert.Equal(t, "chunk-1chunk-2", s.body.String())
	assert.Equal(t, int64(14), em.BytesWritten())
	assert.True(t, em.HeadersSent())
}

func TestEmitter_EmitErrorDiscardsStagedFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	em := NewEmitter(rec)

	require.NoError(t, em.EmitHeaders(media.KindVideo, "clip"))
	require.NoError(t, em.EmitError(http.StatusInternalServerError, ErrorBody{Error: "Failed to process video for video download."}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/json; charset=UTF-8", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"error": "Failed to process video for video download."}, body)

	// The error response is final.
	require.ErrorIs(t, em.EmitError(http.StatusBadRequest, ErrorBody{Error: "again"}), ErrHeadersSent)
	require.ErrorIs(t, em.EmitHeaders(media.KindVideo, "clip"), ErrHeadersSent)
	_, err := em.Write([]byte("x"))
	require.ErrorIs(t, err, ErrHeadersNotEmitted)
}

func TestEmitter_EmitErrorAfterCommitFails(t *testing.T) {
	rec := httptest.NewRecorder()
	em := NewEmitter(rec)

	require.NoError(t, em.EmitHeaders(media.KindAudio, "a"))
	_, err := em.Write([]byte("partial"))
	require.NoError(t, err)

	require.ErrorIs(t, em.EmitError(http.StatusInternalServerError, ErrorBody{Error: "late"}), ErrHeadersSent)
	assert.Equal(t, "partial", rec.Body.String())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmitter_Abort(t *testing.T) {
	em := NewEmitter(httptest.NewRecorder())
	require.ErrorIs(t, em.Abort(), ErrHeadersNotSent)

	require.NoError(t, em.EmitHeaders(media.KindAudio, "a"))
	require.ErrorIs(t, em.Abort(), ErrHeadersNotSent, "staged framing is not sent")

	_, err := em.Write([]byte("x"))
	require.NoError(t, err)
	require.PanicsWithValue(t, http.ErrAbortHandler, func() { _ = em.Abort() })
}

func TestEmitter_CommitWithoutBody(t *testing.T) {
	rec := httptest.NewRecorder()
	em := NewEmitter(rec)

	require.NoError(t, em.EmitHeaders(media.KindVideo, "empty"))
	require.NoError(t, em.Commit())
	require.NoError(t, em.Commit())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)
	assert.Zero(t, rec.Body.Len())
}
