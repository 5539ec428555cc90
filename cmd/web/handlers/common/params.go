package common

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// MsgInvalidBody is returned for bodies that do not decode.
const MsgInvalidBody = "Invalid request body"

// URLRequest is the body of every media endpoint.
type URLRequest struct {
	URL string `json:"url" validate:"required"`
}

// RequireURL binds and validates a URLRequest. Undecodable bodies yield a 400
// with MsgInvalidBody; a missing url yields a 400 with invalidMsg.
func RequireURL(c echo.Context, invalidMsg string) (string, error) {
	var req URLRequest
	if err := c.Bind(&req); err != nil {
		return "", ErrBadRequest(MsgInvalidBody)
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := c.Validate(&req); err != nil {
		return "", ErrBadRequest(invalidMsg)
	}
	return req.URL, nil
}
