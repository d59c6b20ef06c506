package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskhive.io/internal/ids"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*PGStore)(nil)

// PGOption configures PGStore behavior.
type PGOption func(*PGStore)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) PGOption {
	return func(s *PGStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewPGStore(db *sql.DB, opts ...PGOption) *PGStore {
	s := &PGStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PGStore) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token_hash, rotation, expires_at, revoked, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.UserID, rec.TokenHash, rec.Rotation, rec.ExpiresAt, rec.Revoked, rec.CreatedAt,
	)
	return err
}

func (s *PGStore) FindValidByHash(ctx context.Context, hash string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token_hash, rotation, expires_at, revoked, created_at
		 from refresh_tokens where token_hash=$1`, hash)
	var rec Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.Rotation,
		&rec.ExpiresAt, &rec.Revoked, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if rec.Revoked {
		return nil, ErrReused
	}
	if !rec.ExpiresAt.After(s.now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Rotate runs revoke-old and insert-new in one transaction. The guarded
// update matches at most one concurrent caller; the loser sees zero rows and
// reports why.
func (s *PGStore) Rotate(ctx context.Context, oldHash string, next *Record) (RotationResult, error) {
	if next.ID == "" {
		next.ID = ids.New()
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RotationResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update refresh_tokens set revoked = true
		 where token_hash = $1 and revoked = false and expires_at > $2`,
		oldHash, s.now().UTC(),
	)
	if err != nil {
		return RotationResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return RotationResult{}, err
	}
	if n == 0 {
		var revoked bool
		err := tx.QueryRowContext(ctx,
			`select revoked from refresh_tokens where token_hash = $1`, oldHash,
		).Scan(&revoked)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return RotationResult{}, ErrNotFound
		case err != nil:
			return RotationResult{}, err
		case revoked:
			return RotationResult{}, ErrReused
		default:
			// row exists, unrevoked, but expired
			return RotationResult{}, ErrNotFound
		}
	}

	if _, err := tx.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token_hash, rotation, expires_at, revoked, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		next.ID, next.UserID, next.TokenHash, next.Rotation, next.ExpiresAt, false, next.CreatedAt,
	); err != nil {
		return RotationResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return RotationResult{}, err
	}
	return RotationResult{OldRevoked: true, NewCreated: true}, nil
}

func (s *PGStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true where id = $1 and revoked = false`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true where user_id = $1 and revoked = false`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) RevokeAllExcept(ctx context.Context, userID string) (int64, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`update refresh_tokens set revoked = true
		 where user_id <> $1 and revoked = false
		 returning user_id`, userID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	var revoked int64
	users := make(map[string]struct{})
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return 0, 0, err
		}
		revoked++
		users[uid] = struct{}{}
	}
	return revoked, int64(len(users)), rows.Err()
}

func (s *PGStore) EnforcePerUserLimit(ctx context.Context, userID string, max int) (int64, error) {
	if max < 0 {
		max = 0
	}
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where id in (
			select id from refresh_tokens
			where user_id = $1
			order by created_at desc, id desc
			offset $2
		)`, userID, max)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) CleanupRevoked(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where revoked = true`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) Stats(ctx context.Context) (Stats, error) {
	now := s.now().UTC()
	row := s.db.QueryRowContext(ctx,
		`select count(*),
		        count(*) filter (where revoked = false and expires_at > $1),
		        count(*) filter (where expires_at <= $1),
		        count(*) filter (where revoked = true)
		 from refresh_tokens`, now)
	var st Stats
	if err := row.Scan(&st.Total, &st.Active, &st.Expired, &st.Revoked); err != nil {
		return Stats{}, err
	}
	return st, nil
}
