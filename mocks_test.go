package portal_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	portal "github.com/goliatone/go-portal"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var errRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

var errStoreUnavailable = goerrors.New("store unavailable", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal)

// memStore is the in-memory UserStore the service tests run against.
// Set the fail* flags to inject persistence failures.
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*portal.User

	failDelete bool
	failTrack  bool
	failCreate bool
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*portal.User{}}
}

func (s *memStore) clone(u *portal.User) *portal.User {
	cp := *u
	return &cp
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*portal.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return s.clone(u), nil
		}
	}
	return nil, errRecordNotFound
}

func (s *memStore) GetByUserID(_ context.Context, id uuid.UUID) (*portal.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errRecordNotFound
	}
	return s.clone(u), nil
}

func (s *memStore) Register(_ context.Context, user *portal.User) (*portal.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreate {
		return nil, errStoreUnavailable
	}

	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, portal.ErrDuplicateEmail
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	s.users[user.ID] = s.clone(user)
	return s.clone(user), nil
}

func (s *memStore) TrackAttemptedLogin(_ context.Context, user *portal.User) (*portal.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failTrack {
		return nil, errStoreUnavailable
	}

	u, ok := s.users[user.ID]
	if !ok {
		return nil, errRecordNotFound
	}

	u.LoginAttempts++
	if u.LoginAttempts >= portal.MaxLoginAttempts {
		u.IsLocked = true
	}

	return s.clone(u), nil
}

func (s *memStore) TrackSuccessfulLogin(_ context.Context, user *portal.User) (*portal.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[user.ID]
	if !ok {
		return nil, errRecordNotFound
	}

	u.LoginAttempts = 0
	u.IsLocked = false

	return s.clone(u), nil
}

func (s *memStore) UpdateProfile(_ context.Context, id uuid.UUID, username, email string) (*portal.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errRecordNotFound
	}

	u.Username = username
	u.Email = strings.ToLower(strings.TrimSpace(email))

	return s.clone(u), nil
}

func (s *memStore) Promote(_ context.Context, id uuid.UUID, role portal.UserRole) (*portal.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errRecordNotFound
	}

	u.Role = role

	return s.clone(u), nil
}

func (s *memStore) ResetLock(_ context.Context, id uuid.UUID) (*portal.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errRecordNotFound
	}

	u.LoginAttempts = 0
	u.IsLocked = false

	return s.clone(u), nil
}

func (s *memStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDelete {
		return errStoreUnavailable
	}

	if _, ok := s.users[id]; !ok {
		return errRecordNotFound
	}

	delete(s.users, id)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *memStore) get(id uuid.UUID) *portal.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return s.clone(u)
}

func (s *memStore) mustID(t *testing.T, email string) uuid.UUID {
	t.Helper()

	u, err := s.GetByEmail(context.Background(), email)
	require.NoError(t, err)

	return u.ID
}

var _ portal.UserStore = (*memStore)(nil)
