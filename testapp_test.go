package portal_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	portal "github.com/goliatone/go-portal"
	"github.com/stretchr/testify/require"
)

// newTestApp wires the full HTTP surface against an in-memory store
// and fiber's in-memory session storage.
func newTestApp(t *testing.T, store *memStore) (*fiber.App, *portal.SessionManager) {
	t.Helper()

	engine := django.NewFileSystem(http.FS(portal.GetViewsFS()), ".html")

	app := fiber.New(fiber.Config{
		Views:             engine,
		PassLocalsToViews: true,
	})

	sessions := portal.NewSessionManager(portal.NewSessionStore(nil, "", 0))

	auth := portal.NewAuthenticator(store)
	profile := portal.NewProfileService(store)

	portal.RegisterRoutes(app,
		portal.NewAuthController(auth, sessions),
		portal.NewProfileController(profile, sessions),
		portal.NewAdminController(auth, sessions),
		sessions,
	)

	return app, sessions
}

func doRequest(t *testing.T, app *fiber.App, method, path string, form url.Values, cookies []*http.Cookie) *http.Response {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

// mergeCookies layers newly set cookies over the jar, dropping any the
// server cleared.
func mergeCookies(jar []*http.Cookie, resp *http.Response) []*http.Cookie {
	byName := map[string]*http.Cookie{}
	for _, c := range jar {
		byName[c.Name] = c
	}

	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 || (c.Value == "" && c.Expires.Unix() <= 0) {
			delete(byName, c.Name)
			continue
		}
		byName[c.Name] = c
	}

	out := make([]*http.Cookie, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	return out
}

// loginAs registers nothing; it logs an existing account in and
// returns the session cookie jar.
func loginAs(t *testing.T, app *fiber.App, email, password string) []*http.Cookie {
	t.Helper()

	resp := doRequest(t, app, fiber.MethodPost, "/login", url.Values{
		"email":    {email},
		"password": {password},
	}, nil)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))

	jar := mergeCookies(nil, resp)
	require.NotEmpty(t, jar, "login should set a session cookie")

	return jar
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	return string(b)
}
