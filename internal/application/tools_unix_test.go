//go:build unix

package application

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/tubestream/internal/config"
)

// writeScript creates an executable shell script standing in for a tool.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestInitExtractor(t *testing.T) {
	bin := writeScript(t, "yt-dlp", `for a in "$@"; do [ "$a" = "--version" ] && echo 2024.08.06 && exit 0; done; exit 2`)
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File\n"), 0o600))

	client, err := InitExtractor(context.Background(), config.Config{YtdlpPath: bin, YtdlpCookiesFile: cookies})
	require.NoError(t, err)
	require.Equal(t, bin, client.Path)
	require.Equal(t, "# Netscape HTTP Cookie File\n", client.Cookies)
}

func TestInitExtractor_UpdateFailureIsNotFatal(t *testing.T) {
	bin := writeScript(t, "yt-dlp", `for a in "$@"; do [ "$a" = "-U" ] && echo "ERROR: no permission" >&2 && exit 1; done; echo 2024.08.06`)

	_, err := InitExtractor(context.Background(), config.Config{YtdlpPath: bin, YtdlpAutoUpdate: true})
	require.NoError(t, err)
}

func TestInitExtractor_Errors(t *testing.T) {
	_, err := InitExtractor(context.Background(), config.Config{YtdlpPath: filepath.Join(t.TempDir(), "missing")})
	require.ErrorContains(t, err, "yt-dlp unavailable")

	bin := writeScript(t, "yt-dlp", `echo 2024.08.06`)
	_, err = InitExtractor(context.Background(), config.Config{YtdlpPath: bin, YtdlpCookiesFile: "/nope/cookies.txt"})
	require.ErrorContains(t, err, "read cookies file")
}

func TestInitTranscoder(t *testing.T) {
	bin := writeScript(t, "ffmpeg", `echo "ffmpeg version 6.1.1 Copyright (c) 2000-2023"; echo "built with gcc"`)

	version, err := InitTranscoder(context.Background(), config.Config{FFmpegPath: bin})
	require.NoError(t, err)
	require.Equal(t, "ffmpeg version 6.1.1 Copyright (c) 2000-2023", version)

	_, err = InitTranscoder(context.Background(), config.Config{FFmpegPath: filepath.Join(t.TempDir(), "missing")})
	require.ErrorContains(t, err, "ffmpeg unavailable")
}
