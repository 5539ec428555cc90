package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"thirdcoast.systems/tubestream/internal/config"
	"thirdcoast.systems/tubestream/pkg/ffmpeg"
	"thirdcoast.systems/tubestream/pkg/ytdlp"
)

// InitExtractor builds the yt-dlp client from configuration and checks that
// the executable runs. With YTDLP_AUTO_UPDATE set it self-updates first; a
// failed update is logged and otherwise ignored.
func InitExtractor(ctx context.Context, conf config.Config) (*ytdlp.Client, error) {
	client := ytdlp.New()
	client.Path = conf.YtdlpPath
	client.LogCallback = func(stream, line string) {
		slog.Debug("yt-dlp output", "stream", stream, "line", line)
	}

	if conf.YtdlpCookiesFile != "" {
		b, err := os.ReadFile(conf.YtdlpCookiesFile)
		if err != nil {
			return nil, fmt.Errorf("read cookies file: %w", err)
		}
		client.Cookies = string(b)
	}

	if conf.YtdlpAutoUpdate {
		if err := client.Update(ctx); err != nil {
			slog.Warn("yt-dlp self-update failed", "error", err)
		}
	}

	version, err := client.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp unavailable: %w", err)
	}
	slog.Info("yt-dlp ready", "path", client.PathOrDefault(), "version", version, "cookies", client.Cookies != "")
	return client, nil
}

// InitTranscoder checks that the configured ffmpeg runs and returns its
// version line.
func InitTranscoder(ctx context.Context, conf config.Config) (string, error) {
	version, err := ffmpeg.Version(ctx, conf.FFmpegPath)
	if err != nil {
		return "", fmt.Errorf("ffmpeg unavailable: %w", err)
	}
	slog.Info("ffmpeg ready", "path", conf.FFmpegPath, "version", version)
	return version, nil
}
