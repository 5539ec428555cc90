// Package media holds the domain types shared by the download pipeline and
// the collaborator adapters that feed it.
package media

import (
	"context"
	"io"
)

// Kind selects what a request produces.
type Kind string

const (
	KindInfo  Kind = "info"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// ContentType returns the response media type for streamed kinds.
func (k Kind) ContentType() string {
	switch k {
	case KindAudio:
		return "audio/mpeg"
	case KindVideo:
		return "video/mp4"
	default:
		return "application/json"
	}
}

// Extension returns the file extension (with dot) for streamed kinds.
func (k Kind) Extension() string {
	switch k {
	case KindAudio:
		return ".mp3"
	case KindVideo:
		return ".mp4"
	default:
		return ""
	}
}

// Streams reports whether the kind produces a byte stream.
func (k Kind) Streams() bool {
	return k == KindAudio || k == KindVideo
}

// Quality is an abstract hint for which source rendition to open.
type Quality string

const (
	// QualityHighestAudio selects the best audio-only rendition.
	QualityHighestAudio Quality = "highestaudio"
	// QualityHighest selects the best rendition carrying both audio and video.
	QualityHighest Quality = "highest"
)

// Metadata describes a media item. It is produced once per request and never
// mutated afterwards.
type Metadata struct {
	VideoID         string
	Title           string
	ThumbnailURL    string // empty when the source exposes none
	DurationSeconds int
	Author          string
	ViewCount       int64
}

// CodecParams configures the transcode stage.
type CodecParams struct {
	BitrateKbps int
	Format      string
}

// DefaultAudioParams is constant 128 kbps MP3.
var DefaultAudioParams = CodecParams{BitrateKbps: 128, Format: "mp3"}

// Resolver resolves a reference into metadata.
type Resolver interface {
	ResolveMetadata(ctx context.Context, ref string) (*Metadata, error)
}

// Source opens the raw byte stream of a reference.
//
// The returned stream reports a producer failure from Read in place of io.EOF,
// and Close releases every resource behind it. Close must be safe to call more
// than once and concurrently with Read.
type Source interface {
	OpenStream(ctx context.Context, ref string, quality Quality) (io.ReadCloser, error)
}

// Transcoder re-encodes a stream. It takes ownership of in: closing the
// returned stream closes in as well, and so does a failed start.
type Transcoder interface {
	Transcode(ctx context.Context, in io.ReadCloser, params CodecParams) (io.ReadCloser, error)
}
