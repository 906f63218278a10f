package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/credit"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/repository"
	"github.com/iliyamo/room-booking/internal/utils"
)

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// memBookings mirrors the transactional rules of repository.BookingRepo
// under one mutex.
type memBookings struct {
	mu    sync.Mutex
	seq   int
	rows  []model.Booking
	rooms *memRooms
	err   error
}

func (m *memBookings) next() string { m.seq++; return fmt.Sprintf("b%d", m.seq) }

func (m *memBookings) filter(keep func(model.Booking) bool) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Booking{}
	for _, b := range m.rows {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate < out[j].StartDate })
	return out, nil
}

func (m *memBookings) ListByRoom(_ context.Context, roomID string) ([]model.Booking, error) {
	return m.filter(func(b model.Booking) bool { return b.RoomID == roomID })
}

func (m *memBookings) ListByUser(_ context.Context, userID string) ([]model.Booking, error) {
	return m.filter(func(b model.Booking) bool { return b.UserID == userID })
}

func (m *memBookings) ListAll(context.Context) ([]model.Booking, error) {
	return m.filter(func(model.Booking) bool { return true })
}

func (m *memBookings) CreateAndUpdateCredits(ctx context.Context, d model.BookingDraft, p repository.CreditPolicy) (model.CreateResult, error) {
	room, err := m.rooms.GetByID(ctx, d.RoomID)
	if err != nil {
		return model.CreateResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.RoomID == d.RoomID && b.Occupies() && b.StartDate <= d.EndDate && d.StartDate <= b.EndDate {
			return model.CreateResult{}, apperr.ErrConflict
		}
	}
	var res model.CreateResult
	tenant := room.AssignedMonthlyTenantID
	isTenant := tenant != nil && *tenant == d.UserID
	if d.Type == model.TypeMonthlyTenant && isTenant && d.Status == model.StatusConfirmed {
		var mine []model.Booking
		for _, b := range m.rows {
			if b.UserID == d.UserID {
				mine = append(mine, b)
			}
		}
		if avail := credit.Project(mine).Available; avail > 0 {
			res.CreditsUsed = min(avail, d.Days())
		}
	}
	res.BookingID = m.next()
	m.rows = append(m.rows, model.Booking{ID: res.BookingID, RoomID: d.RoomID, UserID: d.UserID,
		StartDate: d.StartDate, EndDate: d.EndDate, Type: d.Type, Status: d.Status, CreditsUsed: res.CreditsUsed, CreatedAt: fixedNow})
	if d.Type == model.TypeDailyRental && tenant != nil && !isTenant && d.Status == model.StatusConfirmed {
		res.CreditEntryID = m.next()
		res.CreditsEarned = d.Days() * p.PerRentalDay
		m.rows = append(m.rows, model.Booking{ID: res.CreditEntryID, RoomID: d.RoomID, UserID: *tenant,
			StartDate: d.StartDate, EndDate: d.EndDate, Type: model.TypeCreditEarned, Status: model.StatusCreditGenerated,
			CreditsEarned: res.CreditsEarned})
	}
	return res, nil
}

func (m *memBookings) Cancel(_ context.Context, id string, caller model.Identity) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.rows {
		if b.ID != id {
			continue
		}
		if b.UserID != caller.ID && !caller.IsOwner() {
			return model.Booking{}, apperr.ErrForbidden
		}
		if !b.Status.Cancellable() || b.Type.IsCredit() {
			return model.Booking{}, apperr.ErrNotFound
		}
		m.rows[i].Status = model.StatusCancelled
		return m.rows[i], nil
	}
	return model.Booking{}, apperr.ErrNotFound
}

func (m *memBookings) ExpirePending(_ context.Context, cutoff time.Time) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for i, b := range m.rows {
		if b.Status == model.StatusPending && b.CreatedAt.Before(cutoff) {
			m.rows[i].Status = model.StatusCancelled
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

type memRooms struct {
	mu    sync.Mutex
	seq   int
	rooms map[string]model.Room
	// profiles resolves tenant references when set.
	profiles *memProfiles
}

func newMemRooms(rooms ...model.Room) *memRooms {
	m := &memRooms{rooms: map[string]model.Room{}}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memRooms) List(context.Context) ([]model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Room{}
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRooms) ListByOwner(ctx context.Context, ownerID string) ([]model.Room, error) {
	all, _ := m.List(ctx)
	out := []model.Room{}
	for _, r := range all {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRooms) GetByID(_ context.Context, id string) (model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return model.Room{}, apperr.ErrNotFound
	}
	return r, nil
}

func (m *memRooms) checkTenant(id *string) error {
	if id == nil || m.profiles == nil {
		return nil
	}
	if _, err := m.profiles.GetByID(context.Background(), *id); err != nil {
		return apperr.ErrReference
	}
	return nil
}

func (m *memRooms) Create(_ context.Context, d model.RoomDraft) (model.Room, error) {
	if err := m.checkTenant(d.AssignedMonthlyTenantID); err != nil {
		return model.Room{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r := model.Room{ID: fmt.Sprintf("r%d", m.seq), Name: d.Name, Location: d.Location, Description: d.Description,
		OwnerID: d.OwnerID, AssignedMonthlyTenantID: d.AssignedMonthlyTenantID, CreatedAt: fixedNow}
	m.rooms[r.ID] = r
	return r, nil
}

func (m *memRooms) Update(_ context.Context, id, ownerID string, d model.RoomDraft) (model.Room, error) {
	if err := m.checkTenant(d.AssignedMonthlyTenantID); err != nil {
		return model.Room{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return model.Room{}, apperr.ErrNotFound
	}
	if r.OwnerID != ownerID {
		return model.Room{}, apperr.ErrForbidden
	}
	r.Name, r.Location, r.Description, r.AssignedMonthlyTenantID = d.Name, d.Location, d.Description, d.AssignedMonthlyTenantID
	m.rooms[id] = r
	return r, nil
}

func (m *memRooms) DeleteWithRelated(_ context.Context, id, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	if r.OwnerID != ownerID {
		return 0, apperr.ErrForbidden
	}
	delete(m.rooms, id)
	return 0, nil
}

type memProfiles struct {
	mu      sync.Mutex
	seq     int
	rows    map[string]repository.ProfileRecord
	deleted []string
	// rooms, when set, refuses deleting a profile that still owns rooms.
	rooms *memRooms
}

func newMemProfiles(rows ...repository.ProfileRecord) *memProfiles {
	m := &memProfiles{rows: map[string]repository.ProfileRecord{}}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memProfiles) Create(_ context.Context, p repository.ProfileRecord, password string, cost int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if p.Email != "" && strings.EqualFold(r.Email, p.Email) {
			return "", repository.ErrEmailExists
		}
	}
	if password != "" {
		h, err := utils.HashPassword(password, cost)
		if err != nil {
			return "", err
		}
		p.PasswordHash = h
	}
	m.seq++
	p.ID = fmt.Sprintf("p%d", m.seq)
	p.CreatedAt = fixedNow
	m.rows[p.ID] = p
	return p.ID, nil
}

func (m *memProfiles) find(match func(repository.ProfileRecord) bool) (repository.ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if match(r) {
			return r, nil
		}
	}
	return repository.ProfileRecord{}, apperr.ErrNotFound
}

func (m *memProfiles) GetByEmail(_ context.Context, email string) (repository.ProfileRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.find(func(r repository.ProfileRecord) bool { return r.Email != "" && r.Email == email })
}

func (m *memProfiles) GetByPhone(_ context.Context, phone string) (repository.ProfileRecord, error) {
	return m.find(func(r repository.ProfileRecord) bool { return r.Phone != "" && r.Phone == phone })
}

func (m *memProfiles) GetByID(_ context.Context, id string) (repository.ProfileRecord, error) {
	return m.find(func(r repository.ProfileRecord) bool { return r.ID == id })
}

func (m *memProfiles) List(context.Context) ([]repository.ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []repository.ProfileRecord{}
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memProfiles) ListAuthUsers(ctx context.Context) ([]model.AuthUser, error) {
	all, _ := m.List(ctx)
	out := []model.AuthUser{}
	for _, p := range all {
		out = append(out, model.AuthUser{ID: p.ID, Email: p.Email, Phone: p.Phone, CreatedAt: p.CreatedAt})
	}
	return out, nil
}

func (m *memProfiles) UpdatePassword(_ context.Context, id, password string, cost int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return apperr.ErrNotFound
	}
	h, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	r.PasswordHash = h
	m.rows[id] = r
	return nil
}

func (m *memProfiles) DeleteWithRelated(ctx context.Context, id, _ string) error {
	var owned []model.Room
	if m.rooms != nil {
		owned, _ = m.rooms.ListByOwner(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return apperr.ErrNotFound
	}
	if len(owned) > 0 {
		return apperr.Validation("user still owns %d room(s)", len(owned))
	}
	delete(m.rows, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type memTokens struct {
	mu      sync.Mutex
	live    map[string]string // hash -> user
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{live: map[string]string{}, revoked: map[string]bool{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[hash] = userID
	return nil
}

func (m *memTokens) ConsumeRefresh(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.live[hash]
	if !ok || m.revoked[hash] {
		return "", apperr.ErrNotFound
	}
	m.revoked[hash] = true
	return u, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[hash] = true
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, u := range m.live {
		if u == userID {
			m.revoked[h] = true
		}
	}
	return nil
}

type memCodes struct {
	mu   sync.Mutex
	vals map[string]string
}

func newMemCodes() *memCodes { return &memCodes{vals: map[string]string{}} }

func (m *memCodes) Put(_ context.Context, k, v string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[k] = v
	return nil
}

func (m *memCodes) Get(_ context.Context, k string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[k]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return v, nil
}

func (m *memCodes) Delete(_ context.Context, k string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, k)
	return nil
}

type published struct {
	key string
	v   any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (r *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, published{key, v})
	return r.err
}

func (r *recordingPublisher) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		out = append(out, m.key)
	}
	return out
}

type countingCache struct{ n int }

func (c *countingCache) Invalidate(context.Context) error { c.n++; return nil }

type sentMail struct{ to, subject, body string }

type recordingMailer struct{ sent []sentMail }

func (r *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	r.sent = append(r.sent, sentMail{to, subject, body})
	return nil
}

type recordingOTP struct{ codes map[string]string }

func (r *recordingOTP) SendCode(_ context.Context, phone, code string) error {
	if r.codes == nil {
		r.codes = map[string]string{}
	}
	r.codes[phone] = code
	return nil
}

func ptr(s string) *string { return &s }

var (
	owner  = model.Identity{ID: "owner-1", Role: model.RoleOwner}
	tenant = model.Identity{ID: "tenant-1", Role: model.RoleTenant}
	guest  = model.Identity{ID: "guest-1"}
)
