package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"thirdcoast.systems/tubestream/internal/media"
)

// State is the terminal state of a request.
type State int

const (
	Success State = iota
	FailedBeforeHeaders
	FailedAfterHeaders
)

func (s State) String() string {
	switch s {
	case Success:
		return "success"
	case FailedBeforeHeaders:
		return "failed_before_headers"
	case FailedAfterHeaders:
		return "failed_after_headers"
	default:
		return "unknown"
	}
}

// Outcome describes how a request ended.
type Outcome struct {
	State    State
	Failure  media.FailureKind
	Err      error
	Bytes    int64
	Duration time.Duration
}

// User-facing error messages.
const (
	MsgInvalidURL        = "Invalid YouTube URL"
	MsgInfoFailed        = "Failed to fetch video information."
	MsgConversionFailed  = "Error during audio conversion."
	MsgTimedOut          = "Download timed out."
	MsgInternal          = "Internal server error."
	msgDownloadFailedFmt = "Failed to process video for %s download."
)

// classify decides the failure kind, giving the request context priority:
// once it is done, whatever error the stages reported is a consequence.
func classify(ctx context.Context, err error) media.FailureKind {
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return media.FailureTimeout
	case errors.Is(ctxErr, context.Canceled):
		return media.FailureClientDisconnect
	}
	return media.KindOf(err)
}

// ErrorResponse maps a pre-header failure to its status and JSON body.
func ErrorResponse(kind media.Kind, failure media.FailureKind, err error) (int, ErrorBody) {
	switch failure {
	case media.FailureInvalidReference:
		return http.StatusBadRequest, ErrorBody{Error: MsgInvalidURL}
	case media.FailureTimeout:
		return http.StatusGatewayTimeout, ErrorBody{Error: MsgTimedOut}
	}

	if kind == media.KindInfo {
		return http.StatusInternalServerError, ErrorBody{Error: MsgInfoFailed, Details: media.Details(err)}
	}
	if failure == media.FailureTranscode {
		return http.StatusInternalServerError, ErrorBody{Error: MsgConversionFailed}
	}
	if kind.Streams() {
		return http.StatusInternalServerError, ErrorBody{Error: downloadFailedMsg(kind)}
	}
	return http.StatusInternalServerError, ErrorBody{Error: MsgInternal}
}

func downloadFailedMsg(kind media.Kind) string {
	return fmt.Sprintf(msgDownloadFailedFmt, string(kind))
}
