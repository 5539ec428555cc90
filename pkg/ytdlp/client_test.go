package ytdlp

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGetInfo_ParsesJSON(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte(`{"id":"abc","title":"hello","webpage_url":"https://example.com","duration":12}`), nil, nil
	}

	info, err := c.GetInfo(context.Background(), "https://example.com/watch?v=abc")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if info.ID != "abc" {
		t.Fatalf("expected id=abc, got %q", info.ID)
	}
	if info.Title != "hello" {
		t.Fatalf("expected title=hello, got %q", info.Title)
	}
	if len(info.Raw) == 0 {
		t.Fatalf("expected Raw to be set")
	}
}

func TestGetInfo_MapsDisplayFields(t *testing.T) {
	c := New()
	var gotArgs []string
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotArgs = args
		return []byte(`{
			"id":"ggLajT7aMMk",
			"title":"Test Video",
			"channel":"Chan",
			"duration":212.4,
			"view_count":1234567,
			"thumbnail":"https://i.ytimg.com/vi/ggLajT7aMMk/default.jpg",
			"thumbnails":[{"url":"https://i.ytimg.com/small.jpg"},{"url":"https://i.ytimg.com/maxres.jpg","width":1280,"height":720}]
		}`), nil, nil
	}

	info, err := c.GetInfo(context.Background(), "https://youtube.com/watch?v=ggLajT7aMMk")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if info.ViewCount != 1234567 {
		t.Fatalf("expected view_count=1234567, got %d", info.ViewCount)
	}
	if got := info.BestThumbnail(); got != "https://i.ytimg.com/maxres.jpg" {
		t.Fatalf("expected last thumbnail, got %q", got)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "--no-playlist") {
		t.Fatalf("expected --no-playlist in args: %v", gotArgs)
	}
	if gotArgs[len(gotArgs)-2] != "--" || gotArgs[len(gotArgs)-1] != "https://youtube.com/watch?v=ggLajT7aMMk" {
		t.Fatalf("expected url after --, got %v", gotArgs)
	}
}

func TestInfo_BestThumbnailFallsBack(t *testing.T) {
	info := &Info{Thumbnail: " https://i.ytimg.com/default.jpg "}
	if got := info.BestThumbnail(); got != "https://i.ytimg.com/default.jpg" {
		t.Fatalf("expected top-level thumbnail, got %q", got)
	}
	info.Thumbnails = []Thumbnail{{URL: "https://a"}, {URL: ""}}
	if got := info.BestThumbnail(); got != "https://a" {
		t.Fatalf("expected last non-empty thumbnail, got %q", got)
	}
}

func TestGetInfo_WrapsExecError(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte("out"), []byte("WARNING: slow\nERROR: [youtube] abc: Video unavailable\n"), errors.New("boom")
	}

	_, err := c.GetInfo(context.Background(), "https://example.com")
	if err == nil {
		t.Fatalf("expected error")
	}
	var ee *ExecError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecError, got %T", err)
	}
	if ee.Reason() != "ERROR: [youtube] abc: Video unavailable" {
		t.Fatalf("expected reason to be the ERROR line, got %q", ee.Reason())
	}
}

func TestVersion_TrimsOutput(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte("2025.01.01\n"), nil, nil
	}

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if v != "2025.01.01" {
		t.Fatalf("expected version to be trimmed, got %q", v)
	}
}
