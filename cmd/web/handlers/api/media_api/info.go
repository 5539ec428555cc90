// Package media_api provides the video info and download handlers.
package media_api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/tubestream/cmd/web/handlers/common"
	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/internal/pipeline"
	"thirdcoast.systems/tubestream/internal/videoid"
)

// InfoResponse is the body of a successful /api/video-info request.
type InfoResponse struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Duration  int    `json:"duration"`
	Author    string `json:"author"`
	ViewCount int64  `json:"viewCount"`
}

// HandleVideoInfo resolves metadata for the posted url.
func HandleVideoInfo(p *pipeline.Pipeline) echo.HandlerFunc {
	return func(c echo.Context) error {
		ref, err := common.RequireURL(c, pipeline.MsgInvalidURL)
		if err != nil {
			return err
		}

		md, err := p.RunInfo(c.Request().Context(), ref)
		if err != nil {
			status, body := pipeline.ErrorResponse(media.KindInfo, media.KindOf(err), err)
			return c.JSON(status, body)
		}

		thumb := md.ThumbnailURL
		if thumb == "" {
			thumb = videoid.ThumbnailURL(md.VideoID)
		}
		return c.JSON(http.StatusOK, InfoResponse{
			Title:     md.Title,
			Thumbnail: thumb,
			Duration:  md.DurationSeconds,
			Author:    md.Author,
			ViewCount: md.ViewCount,
		})
	}
}
