package pipeline

import (
	"context"
	"errors"
	"io"

	"thirdcoast.systems/tubestream/internal/media"
)

// DefaultChunkSize bounds the bytes held in memory per request.
const DefaultChunkSize = 32 << 10

// relay copies src to em one chunk at a time. Each chunk is written and
// flushed before the next read, so a slow client slows the producers down
// through pipe backpressure. onFirstByte runs once, before the first write.
func relay(ctx context.Context, src io.Reader, em *Emitter, chunkSize int, onFirstByte func()) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if total == 0 && onFirstByte != nil {
				onFirstByte()
			}
			w, werr := em.Write(buf[:n])
			total += int64(w)
			if werr != nil {
				if errors.Is(werr, ErrHeadersNotEmitted) {
					return total, media.NewError(media.FailureInternal, werr)
				}
				return total, media.NewError(media.FailureClientDisconnect, werr)
			}
			if w < n {
				return total, media.NewError(media.FailureClientDisconnect, io.ErrShortWrite)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return total, nil
			}
			return total, rerr
		}
	}
}
