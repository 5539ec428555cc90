package media_api

import (
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/tubestream/cmd/web/handlers/common"
	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/internal/pipeline"
)

// HandleDownload streams the posted url as kind. Once the first byte is out,
// failures abort the connection instead of returning an error.
func HandleDownload(p *pipeline.Pipeline, kind media.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		ref, err := common.RequireURL(c, pipeline.MsgInvalidURL)
		if err != nil {
			return err
		}
		p.Deliver(c.Request().Context(), kind, ref, pipeline.NewEmitter(c.Response()))
		return nil
	}
}
