package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/room-booking/internal/model"
)

// RoomRepo provides CRUD operations on the `rooms` table.  Reads join the
// assigned monthly tenant's profile so the directory can display it.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a RoomRepo bound to db.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomSelect = `SELECT r.id, r.name, r.location, COALESCE(r.description, ''), r.owner_id,
       r.assigned_monthly_tenant_id, r.created_at,
       p.id, p.full_name, p.email, p.role
FROM rooms r
LEFT JOIN profiles p ON p.id = r.assigned_monthly_tenant_id`

func scanRoom(s rowScanner) (model.Room, error) {
	var (
		rm                      model.Room
		tenantID                sql.NullString
		pID, pName, pEmail, pRl sql.NullString
	)
	if err := s.Scan(&rm.ID, &rm.Name, &rm.Location, &rm.Description, &rm.OwnerID,
		&tenantID, &rm.CreatedAt, &pID, &pName, &pEmail, &pRl); err != nil {
		return rm, err
	}
	if tenantID.Valid {
		id := tenantID.String
		rm.AssignedMonthlyTenantID = &id
	}
	if pID.Valid {
		rm.AssignedMonthlyTenant = &model.Profile{
			ID: pID.String, FullName: pName.String, Email: pEmail.String, Role: model.Role(pRl.String),
		}
	}
	return rm, nil
}

func (r *RoomRepo) query(ctx context.Context, q string, args ...any) ([]model.Room, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Room, 0)
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

// List returns every room ordered by name.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	return r.query(ctx, roomSelect+` ORDER BY r.name, r.id`)
}

// ListByOwner returns the rooms owned by ownerID.
func (r *RoomRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Room, error) {
	return r.query(ctx, roomSelect+` WHERE r.owner_id = ? ORDER BY r.name, r.id`, ownerID)
}

// GetByID returns one room or ErrNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id string) (model.Room, error) {
	rm, err := scanRoom(r.db.QueryRowContext(ctx, roomSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return rm, ErrNotFound
	}
	return rm, err
}

// checkTenant verifies inside tx that the tenant reference resolves.
func checkTenant(ctx context.Context, tx *sql.Tx, tenantID *string) error {
	if tenantID == nil || *tenantID == "" {
		return nil
	}
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ? LOCK IN SHARE MODE`, *tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReference
	}
	return err
}

func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// Create inserts a room owned by d.OwnerID and returns it with its
// generated id.  An unknown tenant yields ErrReference.
func (r *RoomRepo) Create(ctx context.Context, d model.RoomDraft) (model.Room, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Room{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := checkTenant(ctx, tx, d.AssignedMonthlyTenantID); err != nil {
		return model.Room{}, err
	}
	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO rooms (id, name, location, description, owner_id, assigned_monthly_tenant_id) VALUES (?, ?, ?, ?, ?, ?)`,
		id, d.Name, d.Location, d.Description, d.OwnerID, nullable(d.AssignedMonthlyTenantID))
	if isForeignKey(err) {
		return model.Room{}, ErrReference
	}
	if err != nil {
		return model.Room{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Room{}, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

// Update replaces the editable fields of a room owned by ownerID.  A room
// owned by someone else yields ErrForbidden.
func (r *RoomRepo) Update(ctx context.Context, id, ownerID string, d model.RoomDraft) (model.Room, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Room{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := lockOwnedRoom(ctx, tx, id, ownerID); err != nil {
		return model.Room{}, err
	}
	if err := checkTenant(ctx, tx, d.AssignedMonthlyTenantID); err != nil {
		return model.Room{}, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE rooms SET name = ?, location = ?, description = ?, assigned_monthly_tenant_id = ? WHERE id = ?`,
		d.Name, d.Location, d.Description, nullable(d.AssignedMonthlyTenantID), id)
	if isForeignKey(err) {
		return model.Room{}, ErrReference
	}
	if err != nil {
		return model.Room{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Room{}, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

func lockOwnedRoom(ctx context.Context, tx *sql.Tx, id, ownerID string) error {
	var dbOwnerID string
	err := tx.QueryRowContext(ctx, `SELECT owner_id FROM rooms WHERE id = ? FOR UPDATE`, id).Scan(&dbOwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if dbOwnerID != ownerID {
		return ErrForbidden
	}
	return nil
}

// DeleteWithRelated removes a room and every appointment that references
// it in one transaction, provided it belongs to ownerID.  It returns the
// number of appointments removed.
func (r *RoomRepo) DeleteWithRelated(ctx context.Context, id, ownerID string) (removed int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	if err = lockOwnedRoom(ctx, tx, id, ownerID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE room_id = ?`, id)
	if err != nil {
		return 0, err
	}
	removed, _ = res.RowsAffected()
	if _, err = tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
		return 0, err
	}
	return removed, nil
}
