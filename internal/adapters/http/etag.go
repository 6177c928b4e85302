package http

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// ETagMiddleware computes a weak ETag from the response body and returns
// 304 Not Modified if the client already has it. Responses that already
// carry an ETag are left alone.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		if len(c.Response().Header.Peek(fiber.HeaderETag)) > 0 {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		h := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(h[:8]) + `"`
		c.Set(fiber.HeaderETag, etag)

		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}

// viewETag identifies one committed view. Revisions never repeat within a
// session, so the pair is enough.
func viewETag(v domain.View) string {
	return fmt.Sprintf(`W/"%s-%d"`, v.SessionID, v.Revision)
}

// sendView writes a view with its ETag, or 304 when the client is current.
func sendView(c *fiber.Ctx, status int, v domain.View) error {
	etag := viewETag(v)
	c.Set(fiber.HeaderETag, etag)
	if c.Method() == fiber.MethodGet && c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}
	return c.Status(status).JSON(v)
}
