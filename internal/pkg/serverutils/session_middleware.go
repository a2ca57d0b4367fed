package serverutils

import (
	"strings"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/repository/contract"
	"prawnik-web/internal/session"

	"github.com/gofiber/fiber/v2"
)

const localsSession = "session"

// SessionMiddleware resolves the session cookie into a *session.State. It
// never rejects a request; RedirectRules decides what anonymous users may
// see.
func SessionMiddleware(cfg CookieConfig, sessions contract.ISessionRepository) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		value := ctx.Cookies(SessionCookieName)
		if value == "" {
			return ctx.Next()
		}

		id, err := ParseSessionID(cfg, value)
		if err != nil {
			ClearSessionCookie(ctx, cfg)
			return ctx.Next()
		}

		state, ok := sessions.Get(id)
		if !ok || state.Expired() {
			if ok {
				sessions.Delete(id)
			}
			ClearSessionCookie(ctx, cfg)
			return ctx.Next()
		}

		ctx.Locals(localsSession, state)
		return ctx.Next()
	}
}

func CurrentSession(ctx *fiber.Ctx) (*session.State, bool) {
	state, ok := ctx.Locals(localsSession).(*session.State)
	return state, ok && state != nil
}

// MustSession is for handlers mounted behind RedirectRules.
func MustSession(ctx *fiber.Ctx) (*session.State, error) {
	state, ok := CurrentSession(ctx)
	if !ok {
		return nil, fiber.ErrUnauthorized
	}
	return state, nil
}

var guestOnlyPaths = map[string]bool{
	"/login":           true,
	"/register":        true,
	"/forgot-password": true,
}

func normalizePath(path string) string {
	if len(path) > 1 {
		return strings.TrimRight(path, "/")
	}
	return path
}

func isAppPath(path string) bool {
	return path == "/app" || strings.HasPrefix(path, "/app/")
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/app/api/") || path == "/app/api" || path == "/ws"
}

// RedirectRules sends signed-in users away from the guest pages and
// anonymous users away from the app.
func RedirectRules() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		path := normalizePath(ctx.Path())
		_, signedIn := CurrentSession(ctx)

		switch {
		case signedIn && guestOnlyPaths[path]:
			return ctx.Redirect("/app", fiber.StatusFound)
		case !signedIn && isAPIPath(path):
			resp := CodedErrorResponse(fiber.StatusUnauthorized, dto.ErrUnauthorized, dto.MessageFor(dto.ErrUnauthorized), nil)
			resp.Redirect = "/login"
			return ctx.Status(fiber.StatusUnauthorized).JSON(resp)
		case !signedIn && isAppPath(path):
			return ctx.Redirect("/login", fiber.StatusFound)
		}
		return ctx.Next()
	}
}

// WantsJSON reports whether errors should be rendered as the JSON envelope
// instead of a redirect.
func WantsJSON(ctx *fiber.Ctx) bool {
	path := normalizePath(ctx.Path())
	if isAPIPath(path) || strings.HasPrefix(path, "/api/") {
		return true
	}
	return strings.Contains(ctx.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}
