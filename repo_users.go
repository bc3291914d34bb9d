package portal

import (
	"context"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TrackAttemptedLoginSQL increments the failure counter and derives the
// lock flag from the post-increment count in a single statement, so two
// concurrent attempts against the same account cannot read a stale
// counter and under-count their way past the lockout threshold.
var TrackAttemptedLoginSQL = `UPDATE "users" AS "usr"
SET
	"login_attempts" = "login_attempts" + 1,
	"is_locked" = ("login_attempts" + 1 >= ?),
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."id" = ?
RETURNING *;`

var TrackSuccessfulLoginSQL = `UPDATE "users" AS "usr"
SET
	"login_attempts" = 0,
	"is_locked" = FALSE,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."id" = ?
RETURNING *;`

type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByUserID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	TrackAttemptedLogin(ctx context.Context, user *User) (*User, error)
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) (*User, error)
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	UpdateProfile(ctx context.Context, id uuid.UUID, username, email string) (*User, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, username, email string) (*User, error)

	Promote(ctx context.Context, id uuid.UUID, role UserRole) (*User, error)
	PromoteTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role UserRole) (*User, error)
	ResetLock(ctx context.Context, id uuid.UUID) (*User, error)

	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByUserID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByUserIDTx(ctx, a.db, id)
}

func (a *users) GetByUserIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

// Register creates the record after a duplicate-email pre-check; the
// unique index on email backstops the race between check and insert.
func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	var record *User
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = a.RegisterTx(ctx, tx, user)
		return err
	})
	return record, err
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	if _, err := a.GetByEmailTx(ctx, tx, user.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return record, nil
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) (*User, error) {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, TrackAttemptedLoginSQL, MaxLoginAttempts, user.ID)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return res[0], nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) (*User, error) {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, TrackSuccessfulLoginSQL, user.ID)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return res[0], nil
}

func (a *users) UpdateProfile(ctx context.Context, id uuid.UUID, username, email string) (*User, error) {
	return a.UpdateProfileTx(ctx, a.db, id, username, email)
}

func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, username, email string) (*User, error) {
	record := &User{
		ID:       id,
		Username: username,
		Email:    normalizeEmail(email),
	}

	updated, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return updated, nil
}

// Promote changes the record's role. Only the promotion action mutates
// role; the caller is responsible for authorizing and auditing it.
func (a *users) Promote(ctx context.Context, id uuid.UUID, role UserRole) (*User, error) {
	return a.PromoteTx(ctx, a.db, id, role)
}

func (a *users) PromoteTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role UserRole) (*User, error) {
	if !role.IsValid() {
		return nil, ValidationError("unknown role", map[string]any{"role": role})
	}

	record := &User{
		ID:   id,
		Role: role,
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

// ResetLock is the out-of-band unlock: counter back to zero, lock off.
func (a *users) ResetLock(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.TrackSuccessfulLoginTx(ctx, a.db, &User{ID: id})
}

func (a *users) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return a.DeleteByIDTx(ctx, a.db, id)
}

func (a *users) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func prepareUserDefaults(user *User) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	if user.Role == "" {
		user.Role = RoleUser
	}

	user.Email = normalizeEmail(user.Email)

	if user.CreatedAt == nil {
		now := nowFn()
		user.CreatedAt = &now
		user.UpdatedAt = &now
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
