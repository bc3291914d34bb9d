package portal

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ProfileService covers the current user's own record: read for the
// edit form, update, and delete. Session refresh and destruction are
// the HTTP layer's job; the service only reports what happened to the
// record so the caller can sequence the session side effects.
type ProfileService struct {
	store  UserStore
	logger Logger
}

func NewProfileService(store UserStore) *ProfileService {
	return &ProfileService{
		store:  store,
		logger: defLogger{},
	}
}

func (s *ProfileService) WithLogger(logger Logger) *ProfileService {
	s.logger = logger
	return s
}

// View fetches the current record by the session snapshot's id.
func (s *ProfileService) View(ctx context.Context, current *SessionUser) (*User, error) {
	if current == nil {
		return nil, ErrNotAuthenticated
	}

	user, err := s.store.GetByUserID(ctx, current.ID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, PersistenceError(err, "could not load profile")
	}

	return user, nil
}

// Update writes the new username/email and returns the fresh snapshot
// the caller must push into the session, keeping store and session in
// agreement after every mutation that touches displayed fields.
func (s *ProfileService) Update(ctx context.Context, current *SessionUser, username, email string) (*SessionUser, error) {
	if current == nil {
		return nil, ErrNotAuthenticated
	}

	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if username == "" || email == "" {
		return nil, ValidationError("all fields are required", map[string]any{
			"username": username != "",
			"email":    email != "",
		})
	}

	user, err := s.store.UpdateProfile(ctx, current.ID, username, email)
	if err != nil {
		if goerrors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		if goerrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("profile update error", "user_id", current.ID.String(), "error", err)
		return nil, PersistenceError(err, "could not update profile")
	}

	return user.Snapshot(), nil
}

// Delete removes the record. The caller destroys the session only
// after this returns nil: a failed delete must not orphan a live
// session with no backing record, and a second delete of an already
// gone record reports not-found without touching the session again.
func (s *ProfileService) Delete(ctx context.Context, current *SessionUser) error {
	if current == nil {
		return ErrNotAuthenticated
	}

	if err := s.store.DeleteByID(ctx, current.ID); err != nil {
		if goerrors.IsNotFound(err) {
			return ErrUserNotFound
		}
		s.logger.Error("profile delete error", "user_id", current.ID.String(), "error", err)
		return PersistenceError(err, "could not delete profile")
	}

	s.logger.Info("profile deleted", "user_id", current.ID.String())

	return nil
}
