package server

import (
	"errors"
	"regexp"

	"jobboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

var postIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// parsePostID extracts the :id route parameter.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parsePostID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if !postIDRegex.MatchString(id) {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid post ID"))
		return "", errResponseWritten
	}
	return id, nil
}
