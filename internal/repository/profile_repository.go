package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/utils"
)

// ProfileRecord mirrors the `profiles` table, which doubles as the
// credential store of the auth provider.
type ProfileRecord struct {
	ID           string
	FullName     string
	Email        string
	Phone        string
	Role         model.Role
	PasswordHash string
	CreatedAt    time.Time
}

// Profile returns the public view of the record.
func (p ProfileRecord) Profile() model.Profile {
	return model.Profile{ID: p.ID, FullName: p.FullName, Email: p.Email, Role: p.Role}
}

// Identity returns the record as an authenticated caller.
func (p ProfileRecord) Identity() model.Identity {
	return model.Identity{ID: p.ID, Email: p.Email, Phone: p.Phone, Role: p.Role}
}

type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

const profileColumns = `id, full_name, COALESCE(email, ''), COALESCE(phone, ''), role, password_hash, created_at`

func scanProfile(s rowScanner) (ProfileRecord, error) {
	var p ProfileRecord
	err := s.Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.Role, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create hashes password and inserts the profile, returning its id.  An
// empty password leaves the hash empty, which is the state of a profile
// that can only sign in with a one-time code.
func (r *ProfileRepo) Create(ctx context.Context, p ProfileRecord, password string, cost int) (string, error) {
	if password != "" {
		hash, err := utils.HashPassword(password, cost)
		if err != nil {
			return "", err
		}
		p.PasswordHash = hash
	}
	p.ID = uuid.NewString()
	email := normalizeEmail(p.Email)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO profiles (id, full_name, email, phone, role, password_hash) VALUES (?,?,?,?,?,?)",
		p.ID, p.FullName, nullIfEmpty(email), nullIfEmpty(p.Phone), p.Role, p.PasswordHash)
	if isDuplicate(err) {
		return "", ErrEmailExists
	}
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetByEmail fetches a profile by normalized email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (ProfileRecord, error) {
	return scanProfile(r.DB.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE email=? LIMIT 1", normalizeEmail(email)))
}

// GetByPhone fetches a profile by phone number.
func (r *ProfileRepo) GetByPhone(ctx context.Context, phone string) (ProfileRecord, error) {
	return scanProfile(r.DB.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE phone=? LIMIT 1", strings.TrimSpace(phone)))
}

// GetByID fetches a profile by id.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (ProfileRecord, error) {
	return scanProfile(r.DB.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id=? LIMIT 1", id))
}

// List returns every profile ordered by creation time.
func (r *ProfileRepo) List(ctx context.Context) ([]ProfileRecord, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+profileColumns+" FROM profiles ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ProfileRecord, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListAuthUsers is the list-all-auth-users procedure.
func (r *ProfileRepo) ListAuthUsers(ctx context.Context) ([]model.AuthUser, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.AuthUser, 0, len(all))
	for _, p := range all {
		out = append(out, model.AuthUser{ID: p.ID, Email: p.Email, Phone: p.Phone, CreatedAt: p.CreatedAt})
	}
	return out, nil
}

// UpdatePassword replaces the password hash of a profile.
func (r *ProfileRepo) UpdatePassword(ctx context.Context, id, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE profiles SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWithRelated is the delete-user-and-profile procedure.  In one
// transaction it clears the user's monthly tenant assignments, cancels the
// user's bookings that have not started yet, revokes their refresh tokens
// and removes the profile.  Past bookings stay for credit history.  A user
// who still owns rooms is refused with ErrValidation; their rooms have to be
// deleted first.
func (r *ProfileRepo) DeleteWithRelated(ctx context.Context, id string, today string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM profiles WHERE id=? FOR UPDATE", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var owned int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms WHERE owner_id=? FOR UPDATE", id).Scan(&owned)
	if err != nil {
		return err
	}
	if owned > 0 {
		return fmt.Errorf("%w: user still owns %d room(s)", ErrValidation, owned)
	}
	stmts := []struct {
		q    string
		args []any
	}{
		{"UPDATE rooms SET assigned_monthly_tenant_id=NULL WHERE assigned_monthly_tenant_id=?", []any{id}},
		{"UPDATE appointments SET status=? WHERE user_id=? AND status IN (?,?) AND start_date >= ?",
			[]any{model.StatusCancelled, id, model.StatusConfirmed, model.StatusPending, today}},
		{"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL", []any{id}},
		{"DELETE FROM profiles WHERE id=?", []any{id}},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.q, s.args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
