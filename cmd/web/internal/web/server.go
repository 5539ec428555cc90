package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thirdcoast.systems/tubestream/cmd/web/handlers/api/media_api"
	"thirdcoast.systems/tubestream/cmd/web/handlers/common"
	"thirdcoast.systems/tubestream/internal/config"
	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/internal/pipeline"
)

type Webserver struct {
	*echo.Echo
	conf     config.Config
	pipeline *pipeline.Pipeline
}

func NewWebserver(conf config.Config, p *pipeline.Pipeline) (*Webserver, error) {
	e := echo.New()

	webserver := &Webserver{
		Echo:     e,
		conf:     conf,
		pipeline: p,
	}

	if err := webserver.setupMiddleware(); err != nil {
		return nil, err
	}

	if err := webserver.registerRoutes(); err != nil {
		return nil, err
	}

	return webserver, nil
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// isDownload reports whether the request targets a streaming endpoint.
func isDownload(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/download-")
}

func (s *Webserver) setupMiddleware() error {
	s.HideBanner = true
	s.HidePort = true
	s.Validator = &requestValidator{v: validator.New()}
	s.HTTPErrorHandler = s.handleError

	s.Use(middleware.BodyLimit(s.conf.RequestBodyLimit))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.conf.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Disposition"},
	}))
	// Download bodies are already compressed media and must be flushed per chunk.
	s.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:   5,
		Skipper: isDownload,
	}))
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))

	return nil
}

// handleError renders errors as {"error": msg}. Nothing is written once the
// response is committed.
func (s *Webserver) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		slog.Error("unhandled error", "uri", c.Request().RequestURI, "error", err)
		he = common.ErrInternal(pipeline.MsgInternal)
	}
	if he.Internal != nil {
		slog.Debug("http error", "code", he.Code, "internal", he.Internal)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(he.Code)
	} else {
		werr = c.JSON(he.Code, pipeline.ErrorBody{Error: common.ErrorMessage(he)})
	}
	if werr != nil {
		slog.Debug("writing error response failed", "error", werr)
	}
}

func (s *Webserver) registerRoutes() error {
	apiGroup := s.Group("/api")
	apiGroup.POST("/video-info", media_api.HandleVideoInfo(s.pipeline))
	apiGroup.POST("/download-audio", media_api.HandleDownload(s.pipeline, media.KindAudio))
	apiGroup.POST("/download-video", media_api.HandleDownload(s.pipeline, media.KindVideo))

	// Health check
	s.GET("/healthz", func(c echo.Context) error {
		return c.String(200, "ok")
	})

	if s.conf.MetricsEnabled {
		s.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	return nil
}
