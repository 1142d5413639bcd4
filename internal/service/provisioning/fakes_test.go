package provisioning

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
)

type providerError struct {
	msg string
}

func (e *providerError) Error() string         { return "provider: " + e.msg }
func (e *providerError) PublicMessage() string { return e.msg }

// fakeIdentity is an in-memory Identity Provider. Hooks run before the
// default behaviour and may replace it by returning handled=true.
type fakeIdentity struct {
	mu         sync.Mutex
	identities map[uuid.UUID]*model.Identity

	createCalls int
	deleteCalls int

	createHook func(ctx context.Context, email string) (*model.Identity, bool, error)
	deleteErr  error
	onCreate   func(id uuid.UUID)
	preverify  []bool
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{identities: make(map[uuid.UUID]*model.Identity)}
}

func (f *fakeIdentity) CreateIdentity(ctx context.Context, email, password string, preverified bool) (*model.Identity, error) {
	f.mu.Lock()
	f.createCalls++
	f.preverify = append(f.preverify, preverified)
	hook := f.createHook
	f.mu.Unlock()

	if hook != nil {
		if identity, handled, err := hook(ctx, email); handled {
			return identity, err
		}
	}

	f.mu.Lock()
	for _, existing := range f.identities {
		if existing.Email == email {
			f.mu.Unlock()
			return nil, &providerError{msg: "A user with this email address has already been registered"}
		}
	}
	id := uuid.New()
	identity := &model.Identity{ID: id.String(), Email: email, CreatedAt: time.Now()}
	f.identities[id] = identity
	onCreate := f.onCreate
	f.mu.Unlock()

	if onCreate != nil {
		onCreate(id)
	}
	return identity, nil
}

func (f *fakeIdentity) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.identities[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.identities, id)
	return nil
}

func (f *fakeIdentity) Authenticate(ctx context.Context, email, password string) (*model.Session, error) {
	return nil, repository.ErrInvalidCredentials
}

func (f *fakeIdentity) ListIdentities(ctx context.Context, page, perPage int) ([]*model.Identity, error) {
	return nil, nil
}

func (f *fakeIdentity) has(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.identities[id]
	return ok
}

func (f *fakeIdentity) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.identities)
}

type fakeProfiles struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Profile

	insertCalls int
	updateCalls int
	deleteCalls int

	insertErr  error
	updateErr  error
	deleteErr  error
	updateHook func()
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: make(map[uuid.UUID]*model.Profile)}
}

func (f *fakeProfiles) Insert(ctx context.Context, profile *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++

	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.rows[profile.ID]; ok {
		return repository.ErrConflict
	}
	p := *profile
	f.rows[profile.ID] = &p
	return nil
}

func (f *fakeProfiles) Update(ctx context.Context, id uuid.UUID, patch *model.ProfilePatch) (int64, error) {
	f.mu.Lock()
	f.updateCalls++
	hook := f.updateHook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	row, ok := f.rows[id]
	if !ok {
		return 0, nil
	}
	row.FullName = patch.FullName
	row.Specialty = patch.Specialty
	row.Role = patch.Role
	return 1, nil
}

func (f *fakeProfiles) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++

	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeProfiles) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := *row
	return &p, nil
}

func (f *fakeProfiles) ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Profile
	for _, row := range f.rows {
		if row.Role == role {
			p := *row
			out = append(out, &p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	rows, _ := f.ListByRole(ctx, role)
	return int64(len(rows)), nil
}

func (f *fakeProfiles) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

// stub inserts the row an auth trigger would create on signup.
func (f *fakeProfiles) stub(id uuid.UUID, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id] = &model.Profile{ID: id, Email: email}
}

func (f *fakeProfiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeAppointments struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Appointment

	deleteByDoctorCalls int
	deleteByDoctorErr   error
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{rows: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointments) add(doctorID uuid.UUID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		id := uuid.New()
		f.rows[id] = &model.Appointment{ID: id, DoctorID: doctorID, Status: model.AppointmentStatusBooked}
	}
}

func (f *fakeAppointments) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteByDoctorCalls++

	if f.deleteByDoctorErr != nil {
		return 0, f.deleteByDoctorErr
	}
	var n int64
	for id, row := range f.rows {
		if row.DoctorID == doctorID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeAppointments) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeAppointments) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Appointment
	for _, row := range f.rows {
		if row.DoctorID == doctorID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeAppointments) Count(ctx context.Context, status model.AppointmentStatus) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeAppointments) countFor(doctorID uuid.UUID) int {
	rows, _ := f.ListByDoctor(context.Background(), doctorID)
	return len(rows)
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEmitter) Emit(ctx context.Context, eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakeEmitter) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	created []string
}

func (f *fakeNotifier) DoctorCreated(ctx context.Context, profile *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, profile.Email)
	return nil
}

type fakeRoleCache struct {
	mu        sync.Mutex
	forgotten []uuid.UUID
}

func (f *fakeRoleCache) Forget(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, id)
}

func (f *fakeRoleCache) ids() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.forgotten...)
}
