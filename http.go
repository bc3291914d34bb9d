package portal

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// LocalsUserKey is where the guards park the session snapshot for the
// rest of the request chain.
const LocalsUserKey = "portal:user"

// CurrentUser returns the snapshot a guard stored for this request.
func CurrentUser(c *fiber.Ctx) (*SessionUser, bool) {
	user, ok := c.Locals(LocalsUserKey).(*SessionUser)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// RequireSession passes requests that carry a live session and parks
// the snapshot in locals and the request context. Anything else is a
// navigational outcome, not an error: redirect to the login form.
func RequireSession(sessions *SessionManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := sessions.Current(c)
		if !ok {
			return c.Redirect("/login", fiber.StatusSeeOther)
		}

		c.Locals(LocalsUserKey, user)
		c.SetUserContext(WithContext(c.UserContext(), user))

		return c.Next()
	}
}

// RequireRole passes only when a guard upstream stored a snapshot AND
// its role matches. With no snapshot it fails closed with a 403 rather
// than panicking, so composing it without RequireSession still denies.
// Guards read the denormalized snapshot only and never re-query the
// store; role changes apply on the affected user's next login.
func RequireRole(role UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok || user.Role != role {
			return renderForbidden(c)
		}

		return c.Next()
	}
}

// RequireAdmin is RequireRole for the admin area.
func RequireAdmin() fiber.Handler {
	return RequireRole(RoleAdmin)
}

func renderForbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).Render("errors/403", fiber.Map{
		"message": "Access denied.",
	})
}

// MethodOverride lets HTML forms issue PUT/DELETE by posting a
// _method field.
func MethodOverride() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost {
			switch strings.ToUpper(c.FormValue("_method")) {
			case fiber.MethodPut:
				c.Method(fiber.MethodPut)
			case fiber.MethodDelete:
				c.Method(fiber.MethodDelete)
			}
		}

		return c.Next()
	}
}
