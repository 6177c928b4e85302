package http

import (
	"context"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/engine"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
)

// settle blocks until every fetch the engine has issued is applied, or ctx
// ends. It reports whether the engine settled.
func settle(ctx context.Context, eng *engine.Engine) bool {
	return eng.WaitContext(ctx)
}

// session resolves the :id route parameter.
func session(c *fiber.Ctx, deps *Dependencies) (*usecases.Session, error) {
	return deps.Sessions.Get(c.Params("id"))
}

// ListStationsHandler returns the station catalog.
func ListStationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Catalog.All())
	}
}

// GetStationHandler returns one station by name.
func GetStationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return errBadRequest(c, "invalid station name")
		}
		st, ok := deps.Catalog.Find(strings.TrimSpace(name))
		if !ok {
			return errNotFound(c, "station not found")
		}
		return c.JSON(st)
	}
}

type openSessionRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// OpenSessionHandler starts a view centred on the default station and
// answers once its initial fetches have been applied.
func OpenSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req openSessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid JSON body")
			}
		}

		identity := domain.Identity{
			UserID:   strings.TrimSpace(req.UserID),
			Username: strings.TrimSpace(req.Username),
		}
		sess := deps.Sessions.Open(c.UserContext(), identity)
		settle(c.UserContext(), sess.Engine)

		c.Location("/v1/sessions/" + sess.ID)
		return sendView(c, fiber.StatusCreated, sess.View())
	}
}

// GetSessionHandler returns the current view.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session(c, deps)
		if err != nil {
			return engineError(c, err)
		}
		return sendView(c, fiber.StatusOK, sess.View())
	}
}

// CloseSessionHandler drops a view.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return engineError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type selectStationRequest struct {
	Name string `json:"name"`
}

// SelectStationHandler stages a station without moving the map.
func SelectStationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session(c, deps)
		if err != nil {
			return engineError(c, err)
		}
		var req selectStationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if strings.TrimSpace(req.Name) == "" {
			return errBadRequest(c, "name is required")
		}
		if err := sess.Engine.SelectStation(strings.TrimSpace(req.Name)); err != nil {
			return engineError(c, err)
		}
		return sendView(c, fiber.StatusOK, sess.View())
	}
}

// ConfirmHandler moves the map to the staged station. By default it waits
// for the fetches to settle; ?wait=false answers immediately.
func ConfirmHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session(c, deps)
		if err != nil {
			return engineError(c, err)
		}

		issued := sess.Engine.ConfirmSelection(c.UserContext())
		if !issued {
			c.Set("X-Fetch-Issued", "false")
		}
		if c.QueryBool("wait", true) {
			settle(c.UserContext(), sess.Engine)
		}
		return sendView(c, fiber.StatusOK, sess.View())
	}
}

// SelectVenueHandler opens the rating dialog for a venue in the current set.
func SelectVenueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session(c, deps)
		if err != nil {
			return engineError(c, err)
		}
		if err := sess.Engine.SelectVenue(c.Params("venueId")); err != nil {
			return engineError(c, err)
		}
		return sendView(c, fiber.StatusOK, sess.View())
	}
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

// SetRatingHandler changes the rating on the pending visit.
func SetRatingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session(c, deps)
		if err != nil {
			return engineError(c, err)
		}
		var req ratingRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if err := sess.Engine.SetRating(req.Rating); err != nil {
			return engineError(c, err)
		}
		return sendView(c, fiber.StatusOK, sess.View())
	}
}

// SubmitVisitHandler records the pending visit.
func SubmitVisitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session(c, deps)
		if err != nil {
			return engineError(c, err)
		}
		if err := sess.Engine.SubmitVisit(c.UserContext()); err != nil {
			return engineError(c, err)
		}
		return sendView(c, fiber.StatusOK, sess.View())
	}
}

// CancelVisitHandler closes the rating dialog.
func CancelVisitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session(c, deps)
		if err != nil {
			return engineError(c, err)
		}
		sess.Engine.CancelVisit()
		return sendView(c, fiber.StatusOK, sess.View())
	}
}

// DismissCompletionHandler acknowledges the conquered banner.
func DismissCompletionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session(c, deps)
		if err != nil {
			return engineError(c, err)
		}
		sess.Engine.DismissCompletion()
		return sendView(c, fiber.StatusOK, sess.View())
	}
}

// ListConquestsHandler returns a user's conquests, newest first.
func ListConquestsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Params("userId"))
		if userID == "" {
			return errBadRequest(c, "user id is required")
		}
		if deps.Conquests == nil {
			return errInternal(c, "conquests not available")
		}

		list, err := deps.Conquests.ListByUser(c.UserContext(), userID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := parsePagination(c)
		data := page(list, &pg)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: data, Pagination: pg})
	}
}
