package portal

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MinPasswordLength is the registration floor for passwords.
var MinPasswordLength = 6

// UserStore is the slice of the users repository the services need.
// Tests swap in an in-memory implementation.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUserID(ctx context.Context, id uuid.UUID) (*User, error)
	Register(ctx context.Context, user *User) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, username, email string) (*User, error)
	Promote(ctx context.Context, id uuid.UUID, role UserRole) (*User, error)
	ResetLock(ctx context.Context, id uuid.UUID) (*User, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Authenticator implements registration, login with lockout, and the
// administrative account operations.
type Authenticator struct {
	store  UserStore
	logger Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store UserStore) *Authenticator {
	return &Authenticator{
		store:  store,
		logger: defLogger{},
	}
}

func (s *Authenticator) WithLogger(logger Logger) *Authenticator {
	s.logger = logger
	return s
}

// Register validates the payload, hashes the password, and creates the
// record with role=user, zero attempts, unlocked. It deliberately does
// NOT establish a session: the caller redirects to the login form.
func (s *Authenticator) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if username == "" || email == "" || password == "" {
		return nil, ValidationError("all fields are required", map[string]any{
			"username": username != "",
			"email":    email != "",
			"password": password != "",
		})
	}

	if len(password) < MinPasswordLength {
		return nil, ValidationError("password must be at least 6 characters", map[string]any{
			"password_length": len(password),
		})
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		Role:          RoleUser,
		LoginAttempts: 0,
		IsLocked:      false,
	}

	record, err := s.store.Register(ctx, user)
	if err != nil {
		if goerrors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		s.logger.Error("register user store error", "email", email, "error", err)
		return nil, PersistenceError(err, "could not create user")
	}

	s.logger.Info("user registered", "user_id", record.ID.String(), "email", record.Email)

	return record, nil
}

// Login runs the per-attempt state machine, evaluated in order:
// missing credentials, unknown email, locked account (before any hash
// comparison, so a locked account never reveals password correctness),
// then the comparison itself. A mismatch increments the failure
// counter atomically and trips the lock at the threshold; a match
// resets the counter and returns the session snapshot.
func (s *Authenticator) Login(ctx context.Context, email, password string) (*SessionUser, error) {
	email = normalizeEmail(email)

	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("login lookup error", "email", email, "error", err)
		return nil, PersistenceError(err, "could not look up user")
	}

	if user.IsLocked {
		return nil, ErrAccountLocked
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if !goerrors.Is(err, ErrIncorrectPassword) {
			s.logger.Error("login compare error", "user_id", user.ID.String(), "error", err)
			return nil, PersistenceError(err, "could not verify password")
		}

		tracked, terr := s.store.TrackAttemptedLogin(ctx, user)
		if terr != nil {
			s.logger.Error("failed to track login attempt", "user_id", user.ID.String(), "error", terr)
			return nil, PersistenceError(terr, "could not track login attempt")
		}

		if tracked.IsLocked {
			s.logger.Warn("account locked",
				"user_id", tracked.ID.String(),
				"attempts", tracked.LoginAttempts,
			)
		}

		return nil, ErrIncorrectPassword
	}

	user, err = s.store.TrackSuccessfulLogin(ctx, user)
	if err != nil {
		s.logger.Error("failed to reset login attempts", "user_id", user.ID.String(), "error", err)
		return nil, PersistenceError(err, "could not complete login")
	}

	s.logger.Info("user logged in", "user_id", user.ID.String())

	return user.Snapshot(), nil
}

// Promote elevates one account to admin. It requires an authenticated
// admin actor and every call is logged.
func (s *Authenticator) Promote(ctx context.Context, actor *SessionUser, email string) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	user, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, PersistenceError(err, "could not look up user")
	}

	record, err := s.store.Promote(ctx, user.ID, RoleAdmin)
	if err != nil {
		return nil, PersistenceError(err, "could not promote user")
	}

	s.logger.Warn("user promoted to admin",
		"actor_id", actor.ID.String(),
		"user_id", record.ID.String(),
		"email", record.Email,
	)

	return record, nil
}

// Unlock is the out-of-band lock reset: counter to zero, lock off.
// Like Promote it is an admin-only, audited operation; there is no
// self-service unlock.
func (s *Authenticator) Unlock(ctx context.Context, actor *SessionUser, email string) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	user, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, PersistenceError(err, "could not look up user")
	}

	record, err := s.store.ResetLock(ctx, user.ID)
	if err != nil {
		return nil, PersistenceError(err, "could not unlock user")
	}

	s.logger.Warn("user lock reset",
		"actor_id", actor.ID.String(),
		"user_id", record.ID.String(),
	)

	return record, nil
}
