package portal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a session lives counted from its last
// write; every save pushes the expiry forward.
const DefaultSessionTTL = 24 * time.Hour

// DefaultSessionCookie is the cookie carrying the opaque session id.
const DefaultSessionCookie = "portal_session"

// Session payload keys. The snapshot is stored as flat strings so it
// round-trips through any backing fiber.Storage without a codec.
const (
	sessionKeyUserID   = "user_id"
	sessionKeyUsername = "username"
	sessionKeyEmail    = "email"
	sessionKeyRole     = "role"
)

// SessionManager owns the cookie-backed server side session: it writes
// the SessionUser snapshot at login, rewrites it after profile edits,
// and destroys it at logout or account deletion.
type SessionManager struct {
	store  *session.Store
	logger Logger
}

func NewSessionManager(store *session.Store) *SessionManager {
	return &SessionManager{
		store:  store,
		logger: defLogger{},
	}
}

func (m *SessionManager) WithLogger(logger Logger) *SessionManager {
	m.logger = logger
	return m
}

// NewSessionStore builds the fiber session store with our cookie and
// TTL defaults. A nil storage falls back to fiber's in-memory storage,
// which is what the tests use.
func NewSessionStore(storage fiber.Storage, cookie string, ttl time.Duration) *session.Store {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}

	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return session.New(session.Config{
		Storage:        storage,
		Expiration:     ttl,
		KeyLookup:      "cookie:" + cookie,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})
}

// Establish starts a fresh session for the snapshot. The session id is
// regenerated so a pre-login cookie cannot be fixated onto the
// authenticated session.
func (m *SessionManager) Establish(c *fiber.Ctx, user *SessionUser) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return err
	}

	if !sess.Fresh() {
		if err := sess.Regenerate(); err != nil {
			return err
		}
	}

	writeSnapshot(sess, user)

	return sess.Save()
}

// Refresh rewrites the snapshot in place, used after profile edits so
// the session reflects the stored record.
func (m *SessionManager) Refresh(c *fiber.Ctx, user *SessionUser) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return err
	}

	writeSnapshot(sess, user)

	return sess.Save()
}

// Current returns the snapshot for the request, if a session exists.
func (m *SessionManager) Current(c *fiber.Ctx) (*SessionUser, bool) {
	sess, err := m.store.Get(c)
	if err != nil {
		m.logger.Debug("session lookup failed", "error", err)
		return nil, false
	}

	rawID, _ := sess.Get(sessionKeyUserID).(string)
	if rawID == "" {
		return nil, false
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		m.logger.Warn("session carries malformed user id", "user_id", rawID)
		return nil, false
	}

	username, _ := sess.Get(sessionKeyUsername).(string)
	email, _ := sess.Get(sessionKeyEmail).(string)
	role, _ := sess.Get(sessionKeyRole).(string)

	return &SessionUser{
		ID:       id,
		Username: username,
		Email:    email,
		Role:     UserRole(role),
	}, true
}

// Destroy tears the session down unconditionally. Failures are logged,
// never surfaced: from the client's perspective the session is gone
// regardless, so callers proceed as if logged out.
func (m *SessionManager) Destroy(c *fiber.Ctx) {
	sess, err := m.store.Get(c)
	if err != nil {
		m.logger.Warn("session destroy lookup failed", "error", err)
		return
	}

	if err := sess.Destroy(); err != nil {
		m.logger.Warn("session destroy failed", "error", err)
	}
}

func writeSnapshot(sess *session.Session, user *SessionUser) {
	sess.Set(sessionKeyUserID, user.ID.String())
	sess.Set(sessionKeyUsername, user.Username)
	sess.Set(sessionKeyEmail, user.Email)
	sess.Set(sessionKeyRole, string(user.Role))
}
