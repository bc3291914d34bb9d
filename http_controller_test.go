package portal_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	portal "github.com/goliatone/go-portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationFlow(t *testing.T) {
	store := newMemStore()
	app, _ := newTestApp(t, store)

	t.Run("shows the form", func(t *testing.T) {
		resp := doRequest(t, app, fiber.MethodGet, "/register", nil, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("creates the account and redirects to login", func(t *testing.T) {
		resp := doRequest(t, app, fiber.MethodPost, "/register", url.Values{
			"username": {"alice"},
			"email":    {"a@x.com"},
			"password": {"secret1"},
		}, nil)

		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
		assert.Equal(t, 1, store.count())

		// no session established by registration
		assert.Empty(t, mergeCookies(nil, resp))
	})

	t.Run("re-renders the form on a duplicate email", func(t *testing.T) {
		resp := doRequest(t, app, fiber.MethodPost, "/register", url.Values{
			"username": {"mallory"},
			"email":    {"a@x.com"},
			"password": {"secret2"},
		}, nil)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "email already registered")
		assert.Equal(t, 1, store.count())
	})

	t.Run("re-renders the form on a short password", func(t *testing.T) {
		resp := doRequest(t, app, fiber.MethodPost, "/register", url.Values{
			"username": {"bob"},
			"email":    {"b@x.com"},
			"password": {"nope"},
		}, nil)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, store.count())
	})
}

func TestLoginFlow(t *testing.T) {
	store := newMemStore()
	app, _ := newTestApp(t, store)
	registerUser(t, store, "alice", "a@x.com", "secret1")

	t.Run("wrong password re-renders the form", func(t *testing.T) {
		resp := doRequest(t, app, fiber.MethodPost, "/login", url.Values{
			"email":    {"a@x.com"},
			"password": {"wrong"},
		}, nil)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "incorrect password")
	})

	t.Run("success reaches the dashboard", func(t *testing.T) {
		jar := loginAs(t, app, "a@x.com", "secret1")

		resp := doRequest(t, app, fiber.MethodGet, "/dashboard", nil, jar)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "alice")
	})

	t.Run("logout clears the session", func(t *testing.T) {
		jar := loginAs(t, app, "a@x.com", "secret1")

		resp := doRequest(t, app, fiber.MethodPost, "/logout", nil, jar)
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))

		jar = mergeCookies(jar, resp)
		resp = doRequest(t, app, fiber.MethodGet, "/dashboard", nil, jar)
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})
}

func TestLoginLockoutOverHTTP(t *testing.T) {
	store := newMemStore()
	app, _ := newTestApp(t, store)
	user := registerUser(t, store, "alice", "a@x.com", "secret1")

	for i := 0; i < portal.MaxLoginAttempts; i++ {
		resp := doRequest(t, app, fiber.MethodPost, "/login", url.Values{
			"email":    {"a@x.com"},
			"password": {"wrong"},
		}, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	require.True(t, store.get(user.ID).IsLocked)

	resp := doRequest(t, app, fiber.MethodPost, "/login", url.Values{
		"email":    {"a@x.com"},
		"password": {"secret1"},
	}, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "locked")
}

func TestProfileUpdateFlow(t *testing.T) {
	store := newMemStore()
	app, _ := newTestApp(t, store)
	user := registerUser(t, store, "alice", "a@x.com", "secret1")

	jar := loginAs(t, app, "a@x.com", "secret1")

	// PUT via form method override
	resp := doRequest(t, app, fiber.MethodPost, "/profile", url.Values{
		"_method":  {"PUT"},
		"username": {"alicia"},
		"email":    {"alicia@x.com"},
	}, jar)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	// the record changed
	stored := store.get(user.ID)
	assert.Equal(t, "alicia", stored.Username)
	assert.Equal(t, "alicia@x.com", stored.Email)

	// and the session snapshot reflects the same values
	jar = mergeCookies(jar, resp)
	resp = doRequest(t, app, fiber.MethodGet, "/dashboard", nil, jar)
	body := readBody(t, resp)
	assert.Contains(t, body, "alicia")
	assert.Contains(t, body, "alicia@x.com")
}

func TestProfileDeleteFlow(t *testing.T) {
	store := newMemStore()
	app, _ := newTestApp(t, store)
	registerUser(t, store, "alice", "a@x.com", "secret1")

	jar := loginAs(t, app, "a@x.com", "secret1")

	resp := doRequest(t, app, fiber.MethodPost, "/profile", url.Values{
		"_method": {"DELETE"},
	}, jar)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, 0, store.count())

	// session is gone: the dashboard bounces to login
	jar = mergeCookies(jar, resp)
	resp = doRequest(t, app, fiber.MethodGet, "/dashboard", nil, jar)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestProfileDeleteFailureKeepsSession(t *testing.T) {
	store := newMemStore()
	app, _ := newTestApp(t, store)
	registerUser(t, store, "alice", "a@x.com", "secret1")

	jar := loginAs(t, app, "a@x.com", "secret1")
	store.failDelete = true

	resp := doRequest(t, app, fiber.MethodPost, "/profile", url.Values{
		"_method": {"DELETE"},
	}, jar)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	assert.Equal(t, 1, store.count())

	// the session survived the failed delete
	jar = mergeCookies(jar, resp)
	resp = doRequest(t, app, fiber.MethodGet, "/dashboard", nil, jar)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminPromotionFlow(t *testing.T) {
	store := newMemStore()
	app, _ := newTestApp(t, store)

	registerUser(t, store, "root", "root@x.com", "secret1")
	registerUser(t, store, "alice", "a@x.com", "secret1")

	// bootstrap the first admin out of band
	_, err := store.Promote(context.Background(), store.mustID(t, "root@x.com"), portal.RoleAdmin)
	require.NoError(t, err)

	jar := loginAs(t, app, "root@x.com", "secret1")

	resp := doRequest(t, app, fiber.MethodPost, "/admin/users/promote", url.Values{
		"email": {"a@x.com"},
	}, jar)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	assert.Equal(t, portal.RoleAdmin, store.get(store.mustID(t, "a@x.com")).Role)

	// the promoted user sees the admin page only after their next login
	aliceJar := loginAs(t, app, "a@x.com", "secret1")
	resp = doRequest(t, app, fiber.MethodGet, "/admin", nil, aliceJar)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
