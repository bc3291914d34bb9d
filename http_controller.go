package portal

import (
	"fmt"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// AuthControllerRoutes are the paths the controller mounts.
type AuthControllerRoutes struct {
	Home      string
	Login     string
	Logout    string
	Register  string
	Dashboard string
}

// AuthControllerViews are the template names rendered per route.
type AuthControllerViews struct {
	Home     string
	Login    string
	Register string
}

// AuthController renders the public pages and drives registration,
// login, and logout against the Authenticator.
type AuthController struct {
	Debug    bool
	Logger   Logger
	Auth     *Authenticator
	Sessions *SessionManager
	Routes   *AuthControllerRoutes
	Views    *AuthControllerViews
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAuthDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithAuthLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = l
		return c
	}
}

func NewAuthController(auth *Authenticator, sessions *SessionManager, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		Auth:     auth,
		Sessions: sessions,
		Routes: &AuthControllerRoutes{
			Home:      "/",
			Login:     "/login",
			Logout:    "/logout",
			Register:  "/register",
			Dashboard: "/dashboard",
		},
		Views: &AuthControllerViews{
			Home:     "index",
			Login:    "login",
			Register: "register",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in auth controller...")
	}

	return c
}

func (a *AuthController) HomeShow(c *fiber.Ctx) error {
	user, _ := a.Sessions.Current(c)
	return c.Render(a.Views.Home, fiber.Map{
		"current_user": user,
	})
}

func (a *AuthController) RegistrationShow(c *fiber.Ctx) error {
	return c.Render(a.Views.Register, fiber.Map{
		"error":  nil,
		"record": RegistrationCreatePayload{},
	})
}

// RegistrationCreatePayload is the registration form payload
type RegistrationCreatePayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
	)
}

func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).Render(a.Views.Register, fiber.Map{
			"error":  "Failed to parse form.",
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Render(a.Views.Register, fiber.Map{
			"error":      "All fields are required and password must be at least 6 characters.",
			"validation": FormatValidationErrorToMap(err),
			"record":     payload,
		})
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(payload))
	}

	if _, err := a.Auth.Register(c.UserContext(), payload.Username, payload.Email, payload.Password); err != nil {
		if !IsDomainError(err) {
			a.Logger.Error("register user error", "error", err)
		}
		return c.Render(a.Views.Register, fiber.Map{
			"error":  UserMessage(err),
			"record": payload,
		})
	}

	// Registration does not auto-login: send them to the login form.
	return c.Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

func (a *AuthController) LoginShow(c *fiber.Ctx) error {
	return c.Render(a.Views.Login, fiber.Map{
		"error":  nil,
		"record": LoginRequest{},
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).Render(a.Views.Login, fiber.Map{
			"error":  "Failed to parse form.",
			"record": payload,
		})
	}

	// Field presence is part of the login state machine, so the
	// Authenticator owns it rather than the form layer.
	user, err := a.Auth.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		if !IsDomainError(err) {
			a.Logger.Error("login error", "error", err)
		}
		return c.Render(a.Views.Login, fiber.Map{
			"error":  UserMessage(err),
			"record": payload,
		})
	}

	if err := a.Sessions.Establish(c, user); err != nil {
		a.Logger.Error("failed to establish session", "user_id", user.ID.String(), "error", err)
		return c.Render(a.Views.Login, fiber.Map{
			"error":  "Something went wrong. Try again.",
			"record": payload,
		})
	}

	return c.Redirect(a.Routes.Dashboard, fiber.StatusSeeOther)
}

// LogOut destroys the session unconditionally; destruction failures
// are logged inside the manager and the client is redirected home
// either way.
func (a *AuthController) LogOut(c *fiber.Ctx) error {
	a.Sessions.Destroy(c)
	return c.Redirect(a.Routes.Home, fiber.StatusSeeOther)
}

// ProfileController serves the authenticated pages: dashboard, the
// profile edit form, and the update/delete operations.
type ProfileController struct {
	Logger   Logger
	Profile  *ProfileService
	Sessions *SessionManager
	Views    *ProfileControllerViews
	Routes   *ProfileControllerRoutes
}

type ProfileControllerRoutes struct {
	Home      string
	Dashboard string
	Edit      string
	Profile   string
}

type ProfileControllerViews struct {
	Dashboard string
	Edit      string
}

func NewProfileController(profile *ProfileService, sessions *SessionManager) *ProfileController {
	c := &ProfileController{
		Logger:   defLogger{},
		Profile:  profile,
		Sessions: sessions,
		Routes: &ProfileControllerRoutes{
			Home:      "/",
			Dashboard: "/dashboard",
			Edit:      "/profile/edit",
			Profile:   "/profile",
		},
		Views: &ProfileControllerViews{
			Dashboard: "dashboard",
			Edit:      "edit_profile",
		},
	}

	if c.Profile == nil {
		panic("Missing ProfileService in profile controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in profile controller...")
	}

	return c
}

func (p *ProfileController) WithLogger(l Logger) *ProfileController {
	p.Logger = l
	return p
}

func (p *ProfileController) Dashboard(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)
	return c.Render(p.Views.Dashboard, fiber.Map{
		"current_user": user,
	})
}

func (p *ProfileController) EditShow(c *fiber.Ctx) error {
	current, _ := CurrentUser(c)

	record, err := p.Profile.View(c.UserContext(), current)
	if err != nil {
		if !IsDomainError(err) {
			p.Logger.Error("profile view error", "error", err)
		}
		return c.Render(p.Views.Edit, fiber.Map{
			"error":        UserMessage(err),
			"current_user": current,
			"record":       current,
		})
	}

	return c.Render(p.Views.Edit, fiber.Map{
		"error":        nil,
		"current_user": current,
		"record":       record.Snapshot(),
	})
}

// ProfileUpdatePayload is the edit form payload
type ProfileUpdatePayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ProfileUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
	)
}

// Update writes the record then refreshes the session snapshot so both
// report the same username/email on the next read.
func (p *ProfileController) Update(c *fiber.Ctx) error {
	current, _ := CurrentUser(c)
	payload := new(ProfileUpdatePayload)

	if err := c.BodyParser(payload); err != nil {
		p.Logger.Error("profile update parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).Render(p.Views.Edit, fiber.Map{
			"error":        "Failed to parse form.",
			"current_user": current,
			"record":       current,
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Render(p.Views.Edit, fiber.Map{
			"error":        "All fields are required.",
			"validation":   FormatValidationErrorToMap(err),
			"current_user": current,
			"record":       payload,
		})
	}

	snapshot, err := p.Profile.Update(c.UserContext(), current, payload.Username, payload.Email)
	if err != nil {
		if !IsDomainError(err) {
			p.Logger.Error("profile update error", "error", err)
		}
		return c.Render(p.Views.Edit, fiber.Map{
			"error":        UserMessage(err),
			"current_user": current,
			"record":       payload,
		})
	}

	if err := p.Sessions.Refresh(c, snapshot); err != nil {
		p.Logger.Error("failed to refresh session after profile update",
			"user_id", snapshot.ID.String(), "error", err)
	}

	return c.Redirect(p.Routes.Dashboard, fiber.StatusSeeOther)
}

// Delete removes the record, then the session, in that order. When the
// delete fails the session stays: destroying it would orphan a live
// cookie with no backing record.
func (p *ProfileController) Delete(c *fiber.Ctx) error {
	current, _ := CurrentUser(c)

	if err := p.Profile.Delete(c.UserContext(), current); err != nil {
		if !IsDomainError(err) {
			p.Logger.Error("profile delete error", "error", err)
		}
		return c.Redirect(p.Routes.Dashboard, fiber.StatusSeeOther)
	}

	p.Sessions.Destroy(c)

	return c.Redirect(p.Routes.Home, fiber.StatusSeeOther)
}

// AdminController serves the restricted area plus the audited account
// operations: promotion and lock reset.
type AdminController struct {
	Logger   Logger
	Auth     *Authenticator
	Sessions *SessionManager
}

func NewAdminController(auth *Authenticator, sessions *SessionManager) *AdminController {
	if auth == nil {
		panic("Missing Authenticator in admin controller...")
	}
	if sessions == nil {
		panic("Missing SessionManager in admin controller...")
	}

	return &AdminController{
		Logger:   defLogger{},
		Auth:     auth,
		Sessions: sessions,
	}
}

func (a *AdminController) WithLogger(l Logger) *AdminController {
	a.Logger = l
	return a
}

func (a *AdminController) Index(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)
	return c.Render("admin", fiber.Map{
		"current_user": user,
		"notice":       c.Query("notice"),
		"error":        c.Query("error"),
	})
}

// AccountActionPayload targets one account by email.
type AccountActionPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r AccountActionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AdminController) Promote(c *fiber.Ctx) error {
	return a.accountAction(c, "promote", func(actor *SessionUser, email string) (*User, error) {
		return a.Auth.Promote(c.UserContext(), actor, email)
	})
}

func (a *AdminController) Unlock(c *fiber.Ctx) error {
	return a.accountAction(c, "unlock", func(actor *SessionUser, email string) (*User, error) {
		return a.Auth.Unlock(c.UserContext(), actor, email)
	})
}

func (a *AdminController) accountAction(c *fiber.Ctx, action string, fn func(*SessionUser, string) (*User, error)) error {
	actor, _ := CurrentUser(c)
	payload := new(AccountActionPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("admin action parse payload", "action", action, "error", err)
		return c.Redirect("/admin?error=Failed+to+parse+form", fiber.StatusSeeOther)
	}

	if err := payload.Validate(); err != nil {
		return c.Redirect("/admin?error=A+valid+email+is+required", fiber.StatusSeeOther)
	}

	record, err := fn(actor, payload.Email)
	if err != nil {
		if !IsDomainError(err) {
			a.Logger.Error("admin action failed", "action", action, "error", err)
		}
		return c.Redirect("/admin?error="+url.QueryEscape(UserMessage(err)), fiber.StatusSeeOther)
	}

	a.Logger.Info("admin action applied",
		"action", action,
		"actor_id", actor.ID.String(),
		"user_id", record.ID.String(),
	)

	return c.Redirect("/admin?notice=Done", fiber.StatusSeeOther)
}

// RegisterRoutes mounts every route from the route table with its
// guards. RequireRole composes after RequireSession on the admin area;
// on its own it would still fail closed.
func RegisterRoutes(app *fiber.App, auth *AuthController, profile *ProfileController, admin *AdminController, sessions *SessionManager) {
	app.Use(MethodOverride())

	app.Get(auth.Routes.Home, auth.HomeShow)

	app.Get(auth.Routes.Register, auth.RegistrationShow)
	app.Post(auth.Routes.Register, auth.RegistrationCreate)

	app.Get(auth.Routes.Login, auth.LoginShow)
	app.Post(auth.Routes.Login, auth.LoginPost)

	app.Post(auth.Routes.Logout, auth.LogOut)

	session := RequireSession(sessions)

	app.Get(profile.Routes.Dashboard, session, profile.Dashboard)
	app.Get(profile.Routes.Edit, session, profile.EditShow)
	app.Put(profile.Routes.Profile, session, profile.Update)
	app.Delete(profile.Routes.Profile, session, profile.Delete)

	app.Get("/admin", session, RequireAdmin(), admin.Index)
	app.Post("/admin/users/promote", session, RequireAdmin(), admin.Promote)
	app.Post("/admin/users/unlock", session, RequireAdmin(), admin.Unlock)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).Render("errors/404", fiber.Map{
			"message": "Page not found",
		})
	})
}

// FormatValidationErrorToMap flattens ozzo's validation.Errors into a
// field → message map for the templates.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if errs, ok := err.(validation.Errors); ok {
		for field, ferr := range errs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
