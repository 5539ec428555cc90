package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"thirdcoast.systems/tubestream/cmd/web/internal/web"
	"thirdcoast.systems/tubestream/internal/application"
	"thirdcoast.systems/tubestream/internal/config"
	"thirdcoast.systems/tubestream/internal/engine"
	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting web service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(application.NewLogger(os.Stdout, conf.LogLevel))

	client, err := application.InitExtractor(ctx, *conf)
	if err != nil {
		slog.Error("failed to initialize yt-dlp", "error", err)
		os.Exit(1)
	}
	if _, err := application.InitTranscoder(ctx, *conf); err != nil {
		slog.Error("failed to initialize ffmpeg", "error", err)
		os.Exit(1)
	}

	extractor := engine.NewExtractor(client)
	transcoder := engine.NewTranscoder(conf.FFmpegPath, conf.LogLevel == "debug")
	p := pipeline.New(extractor, extractor, transcoder,
		pipeline.WithAudioParams(media.CodecParams{BitrateKbps: conf.AudioBitrateKbps, Format: "mp3"}),
		pipeline.WithTimestampedFilenames(conf.TimestampFilenames),
		pipeline.WithStreamTimeout(conf.StreamTimeout),
	)

	e, err := web.NewWebserver(*conf, p)
	if err != nil {
		slog.Error("failed to create webserver", "error", err)
		os.Exit(1)
	}

	addr := ":" + strconv.Itoa(conf.WebServerPort)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown incomplete", "error", err)
			_ = e.Close()
		}
	}()

	slog.Info("Listening", "addr", addr)
	if err := e.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
			// In-flight downloads drain until the shutdown timeout.
			<-shutdownDone
			slog.Info("Server stopped")
			return
		}
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
