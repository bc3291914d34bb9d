package portal

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// SessionRecord is a server side session row. The id is the opaque
// token from the client cookie, data is whatever the session
// middleware hands us.
type SessionRecord struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            string     `bun:"id,pk" json:"id"`
	Data          []byte     `bun:"data" json:"-"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
}

// SessionStorage is a bun-backed fiber.Storage so sessions survive
// process restarts. Expired rows are treated as absent on read and
// removed by the Cleanup sweep.
type SessionStorage struct {
	db     *bun.DB
	logger Logger
}

func NewSessionStorage(db *bun.DB) *SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: defLogger{},
	}
}

func (s *SessionStorage) WithLogger(logger Logger) *SessionStorage {
	s.logger = logger
	return s
}

// Get returns the value for key, or nil when missing or expired.
func (s *SessionStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}

	ctx := context.Background()
	record := &SessionRecord{}

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if record.ExpiresAt != nil && record.ExpiresAt.Before(nowFn()) {
		if err := s.Delete(key); err != nil {
			s.logger.Warn("failed to drop expired session", "error", err)
		}
		return nil, nil
	}

	return record.Data, nil
}

// Set upserts the value; exp counts from now, zero means no expiry.
func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" {
		return nil
	}

	record := &SessionRecord{
		ID:   key,
		Data: val,
	}

	if exp > 0 {
		expires := nowFn().Add(exp)
		record.ExpiresAt = &expires
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(context.Background())

	return err
}

func (s *SessionStorage) Delete(key string) error {
	if key == "" {
		return nil
	}

	_, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("?TableAlias.id = ?", key).
		Exec(context.Background())

	return err
}

func (s *SessionStorage) Reset() error {
	_, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("1 = 1").
		Exec(context.Background())

	return err
}

func (s *SessionStorage) Close() error {
	return nil
}

// Cleanup removes expired rows; run it on a timer from the server.
func (s *SessionStorage) Cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("?TableAlias.expires_at IS NOT NULL").
		Where("?TableAlias.expires_at < ?", nowFn()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, nil
}
