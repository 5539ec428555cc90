package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(infoCmd, newDownloadCmd(media.KindAudio), newDownloadCmd(media.KindVideo))
}

var infoCmd = &cobra.Command{
	Use:   "info <url>",
	Short: "Print video metadata as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pipelineOrErr()
		if err != nil {
			return err
		}
		return runInfo(cmd.Context(), p, args[0], cmd.OutOrStdout())
	},
}

func newDownloadCmd(kind media.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind) + " <url>",
		Short: fmt.Sprintf("Download the %s rendition to a %s file", kind, kind.Extension()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipelineOrErr()
			if err != nil {
				return err
			}
			dir, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			path, n, err := runDownload(cmd.Context(), p, kind, args[0], dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, humanize.Bytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", ".", "Directory to write the file into")
	return cmd
}

type infoOutput struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Duration  int    `json:"duration"`
	Author    string `json:"author"`
	ViewCount int64  `json:"viewCount"`
}

func runInfo(ctx context.Context, p *pipeline.Pipeline, ref string, w io.Writer) error {
	md, err := p.RunInfo(ctx, ref)
	if err != nil {
		_, body := pipeline.ErrorResponse(media.KindInfo, media.KindOf(err), err)
		if body.Details != "" {
			return fmt.Errorf("%s %s", body.Error, body.Details)
		}
		return fmt.Errorf("%s", body.Error)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(infoOutput{
		Title:     md.Title,
		Thumbnail: md.ThumbnailURL,
		Duration:  md.DurationSeconds,
		Author:    md.Author,
		ViewCount: md.ViewCount,
	})
}

// runDownload writes the stream to dir under its derived filename. The file
// only appears under its final name once the stream completed.
func runDownload(ctx context.Context, p *pipeline.Pipeline, kind media.Kind, ref, dir string) (string, int64, error) {
	d, rc, err := p.Run(ctx, kind, ref)
	if err != nil {
		_, body := pipeline.ErrorResponse(kind, media.KindOf(err), err)
		return "", 0, fmt.Errorf("%s: %w", body.Error, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(dir, ".download-*"+kind.Extension())
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, rc)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", n, fmt.Errorf("download interrupted after %s: %w", humanize.Bytes(uint64(n)), err)
	}

	path := filepath.Join(dir, d.Filename+kind.Extension())
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", n, err
	}
	return path, n, nil
}
