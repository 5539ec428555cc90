package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"thirdcoast.systems/tubestream/internal/application"
	"thirdcoast.systems/tubestream/internal/config"
	"thirdcoast.systems/tubestream/internal/engine"
	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/internal/pipeline"
)

// pl is built once per invocation by the root PersistentPreRunE.
var pl *pipeline.Pipeline

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("ytdlp", "", "Path to the yt-dlp executable")
	rootCmd.PersistentFlags().String("ffmpeg", "", "Path to the ffmpeg executable")
	rootCmd.PersistentFlags().String("cookies", "", "Netscape cookies file passed to yt-dlp")

	mustBind("LOG_LEVEL", "log-level")
	mustBind("YTDLP_PATH", "ytdlp")
	mustBind("FFMPEG_PATH", "ffmpeg")
	mustBind("YTDLP_COOKIES_FILE", "cookies")
}

func mustBind(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

var rootCmd = &cobra.Command{
	Use:          "downloader",
	Short:        "Fetch YouTube video info or download audio/video to disk",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conf, err := config.LoadConfig(ctx)
		if err != nil {
			return err
		}
		slog.SetDefault(application.NewLogger(os.Stderr, conf.LogLevel))

		client, err := application.InitExtractor(ctx, *conf)
		if err != nil {
			return err
		}
		if _, err := application.InitTranscoder(ctx, *conf); err != nil {
			return err
		}

		extractor := engine.NewExtractor(client)
		pl = pipeline.New(extractor, extractor, engine.NewTranscoder(conf.FFmpegPath, conf.LogLevel == "debug"),
			pipeline.WithAudioParams(media.CodecParams{BitrateKbps: conf.AudioBitrateKbps, Format: "mp3"}),
			pipeline.WithTimestampedFilenames(conf.TimestampFilenames),
		)
		return nil
	},
}

func pipelineOrErr() (*pipeline.Pipeline, error) {
	if pl == nil {
		return nil, fmt.Errorf("pipeline not initialized")
	}
	return pl, nil
}
