// Package engine adapts the yt-dlp and ffmpeg executables to the media
// collaborator interfaces used by the download pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/pkg/ytdlp"
)

// yt-dlp format selectors per quality hint. Video must be a single progressive
// file so it can be relayed without muxing.
const (
	FormatHighestAudio = "bestaudio/best"
	FormatHighest      = "best[ext=mp4][acodec!=none][vcodec!=none]/best[acodec!=none][vcodec!=none]"
)

// Extractor resolves metadata and opens source streams through yt-dlp.
type Extractor struct {
	getInfo func(ctx context.Context, url string, extraArgs ...string) (*ytdlp.Info, error)
	stream  func(ctx context.Context, url, format string, extraArgs ...string) (io.ReadCloser, error)
}

var (
	_ media.Resolver = (*Extractor)(nil)
	_ media.Source   = (*Extractor)(nil)
)

// NewExtractor returns an Extractor backed by client.
func NewExtractor(client *ytdlp.Client) *Extractor {
	return &Extractor{
		getInfo: client.GetInfo,
		stream: func(ctx context.Context, url, format string, extraArgs ...string) (io.ReadCloser, error) {
			s, err := client.Stream(ctx, url, format, extraArgs...)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

// ResolveMetadata runs a metadata-only yt-dlp query for ref.
func (e *Extractor) ResolveMetadata(ctx context.Context, ref string) (*media.Metadata, error) {
	info, err := e.getInfo(ctx, ref)
	if err != nil {
		return nil, media.NewError(media.FailureResolve, err)
	}

	author := strings.TrimSpace(info.Uploader)
	if author == "" {
		author = strings.TrimSpace(info.Channel)
	}

	return &media.Metadata{
		VideoID:         info.ID,
		Title:           strings.TrimSpace(info.Title),
		ThumbnailURL:    info.BestThumbnail(),
		DurationSeconds: int(info.Duration),
		Author:          author,
		ViewCount:       info.ViewCount,
	}, nil
}

// OpenStream starts yt-dlp streaming the rendition selected by quality.
func (e *Extractor) OpenStream(ctx context.Context, ref string, quality media.Quality) (io.ReadCloser, error) {
	format, err := FormatFor(quality)
	if err != nil {
		return nil, media.NewError(media.FailureInternal, err)
	}

	s, err := e.stream(ctx, ref, format)
	if err != nil {
		return nil, media.NewError(media.FailureStreamOpen, err)
	}
	return &sourceStream{rc: s}, nil
}

// FormatFor maps a quality hint to a yt-dlp format selector.
func FormatFor(q media.Quality) (string, error) {
	switch q {
	case media.QualityHighestAudio:
		return FormatHighestAudio, nil
	case media.QualityHighest:
		return FormatHighest, nil
	default:
		return "", fmt.Errorf("engine: unknown quality %q", q)
	}
}

// sourceStream classifies yt-dlp failures. A failure before the first byte
// means the stream never opened.
type sourceStream struct {
	rc io.ReadCloser
	n  int64
}

func (s *sourceStream) Read(p []byte) (int, error) {
	n, err := s.rc.Read(p)
	s.n += int64(n)
	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	if s.n == 0 {
		return n, media.NewError(media.FailureStreamOpen, err)
	}
	return n, media.NewError(media.FailureStream, err)
}

func (s *sourceStream) Close() error {
	return s.rc.Close()
}
