package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
)

// errorJSON maps a service error onto the response envelope. Unknown errors
// collapse to a plain 500 so internals never leak to the client.
func errorJSON(c echo.Context, err error) error {
	status, message := collab.StatusOf(err)
	return c.JSON(status, map[string]string{"error": message})
}
