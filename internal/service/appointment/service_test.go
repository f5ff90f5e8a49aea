package appointment

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/clinic-api/internal/model"
	"github.com/medidesk/clinic-api/pkg/errors"
)

// mockAppointmentRepository keeps appointments in memory. CreateIfSlotFree
// re-checks under its own mutex, mirroring the transactional re-check of the
// postgres implementation.
type mockAppointmentRepository struct {
	mu           sync.Mutex
	appointments []*model.Appointment
}

func (m *mockAppointmentRepository) overlapsLocked(doctorID uuid.UUID, start, end time.Time) bool {
	for _, a := range m.appointments {
		if a.DoctorID != doctorID || a.Status != model.AppointmentStatusBooked {
			continue
		}
		if a.StartTime.Before(end) && start.Before(a.EndTime) {
			return true
		}
	}
	return false
}

func (m *mockAppointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.NewNotFound("appointment", nil)
}

func (m *mockAppointmentRepository) CheckConflicts(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlapsLocked(doctorID, start, end), nil
}

func (m *mockAppointmentRepository) CreateIfSlotFree(ctx context.Context, apt *model.Appointment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlapsLocked(apt.DoctorID, apt.StartTime, apt.EndTime) {
		return false, nil
	}
	cp := *apt
	m.appointments = append(m.appointments, &cp)
	return true, nil
}

func (m *mockAppointmentRepository) Update(ctx context.Context, apt *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.appointments {
		if a.ID == apt.ID {
			cp := *apt
			m.appointments[i] = &cp
			return nil
		}
	}
	return errors.NewNotFound("appointment", nil)
}

func (m *mockAppointmentRepository) listWhere(match func(*model.Appointment) bool) []*model.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Appointment
	for _, a := range m.appointments {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

func (m *mockAppointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	return m.listWhere(func(a *model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (m *mockAppointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return m.listWhere(func(a *model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *mockAppointmentRepository) FindDueUnnotified(ctx context.Context, windowStart, windowEnd time.Time) ([]*model.AppointmentReminder, error) {
	return nil, nil
}

func (m *mockAppointmentRepository) MarkNotified(ctx context.Context, id uuid.UUID) error {
	return nil
}

type mockDoctorRepository struct {
	byUserID map[uuid.UUID]*model.Doctor
}

func (m *mockDoctorRepository) Create(ctx context.Context, tx *sqlx.Tx, d *model.Doctor) error {
	return nil
}

func (m *mockDoctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	if d, ok := m.byUserID[userID]; ok {
		return d, nil
	}
	return nil, errors.NewNotFound("doctor", nil)
}

func (m *mockDoctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return nil, errors.NewNotFound("doctor", nil)
}

func (m *mockDoctorRepository) Update(ctx context.Context, d *model.Doctor) error { return nil }

func (m *mockDoctorRepository) List(ctx context.Context) ([]*model.Doctor, error) { return nil, nil }

type mockPatientRepository struct {
	byUserID map[uuid.UUID]*model.Patient
}

func (m *mockPatientRepository) Create(ctx context.Context, tx *sqlx.Tx, p *model.Patient) error {
	return nil
}

func (m *mockPatientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	if p, ok := m.byUserID[userID]; ok {
		return p, nil
	}
	return nil, errors.NewNotFound("patient", nil)
}

func (m *mockPatientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return nil, errors.NewNotFound("patient", nil)
}

func (m *mockPatientRepository) Update(ctx context.Context, p *model.Patient) error { return nil }

func (m *mockPatientRepository) List(ctx context.Context) ([]*model.Patient, error) { return nil, nil }

func newTestService(repo *mockAppointmentRepository, doctors *mockDoctorRepository, patients *mockPatientRepository) *Service {
	if doctors == nil {
		doctors = &mockDoctorRepository{byUserID: map[uuid.UUID]*model.Doctor{}}
	}
	if patients == nil {
		patients = &mockPatientRepository{byUserID: map[uuid.UUID]*model.Patient{}}
	}
	return NewService(repo, doctors, patients, nil, nil, nil)
}

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 1, hour, min, 0, 0, time.UTC)
}

func TestBookSuccess(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)

	patientID, doctorID := uuid.New(), uuid.New()
	apt, err := svc.Book(context.Background(), patientID, doctorID, at(9, 0), at(9, 30))

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, apt.ID)
	assert.Equal(t, patientID, apt.PatientID)
	assert.Equal(t, doctorID, apt.DoctorID)
	assert.Equal(t, model.AppointmentStatusBooked, apt.Status)
	assert.False(t, apt.Notified)
}

func TestBookInvalidInterval(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)

	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), at(10, 0), at(10, 0))
	assert.True(t, errors.IsValidation(err), "zero-length interval should be a validation error")

	_, err = svc.Book(context.Background(), uuid.New(), uuid.New(), at(10, 0), at(9, 0))
	assert.True(t, errors.IsValidation(err), "inverted interval should be a validation error")

	_, err = svc.Book(context.Background(), uuid.Nil, uuid.New(), at(9, 0), at(10, 0))
	assert.True(t, errors.IsValidation(err), "missing patient should be a validation error")

	_, err = svc.Book(context.Background(), uuid.New(), uuid.Nil, at(9, 0), at(10, 0))
	assert.True(t, errors.IsValidation(err), "missing doctor should be a validation error")
}

func TestBookOverlapConflicts(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)
	doctorID := uuid.New()

	_, err := svc.Book(context.Background(), uuid.New(), doctorID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), uuid.New(), doctorID, at(9, 30), at(10, 30))
	assert.True(t, errors.IsConflict(err))
}

func TestBookBoundaryTouchingDoesNotConflict(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)
	doctorID := uuid.New()

	_, err := svc.Book(context.Background(), uuid.New(), doctorID, at(9, 0), at(9, 30))
	require.NoError(t, err)

	// An appointment ending exactly when another begins does not conflict.
	_, err = svc.Book(context.Background(), uuid.New(), doctorID, at(9, 30), at(10, 0))
	assert.NoError(t, err)
}

func TestBookDifferentDoctorsDoNotConflict(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)

	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), at(9, 0), at(10, 0))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), uuid.New(), uuid.New(), at(9, 0), at(10, 0))
	assert.NoError(t, err)
}

func TestBookOverCancelledSlotSucceeds(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)
	doctorID := uuid.New()

	apt, err := svc.Book(context.Background(), uuid.New(), doctorID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), apt.ID, "patient request"))

	_, err = svc.Book(context.Background(), uuid.New(), doctorID, at(9, 0), at(10, 0))
	assert.NoError(t, err, "cancelled appointments must not block the slot")
}

func TestHasConflictHalfOpenSemantics(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)
	doctorID := uuid.New()

	_, err := svc.Book(context.Background(), uuid.New(), doctorID, at(10, 0), at(11, 0))
	require.NoError(t, err)

	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"identical", at(10, 0), at(11, 0), true},
		{"contained", at(10, 15), at(10, 45), true},
		{"containing", at(9, 30), at(11, 30), true},
		{"overlap start", at(9, 30), at(10, 30), true},
		{"overlap end", at(10, 30), at(11, 30), true},
		{"touching before", at(9, 0), at(10, 0), false},
		{"touching after", at(11, 0), at(12, 0), false},
		{"disjoint before", at(8, 0), at(9, 0), false},
		{"disjoint after", at(12, 0), at(13, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.HasConflict(context.Background(), doctorID, tc.start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConcurrentBookingExactlyOneSuccess(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)
	doctorID := uuid.New()

	const n = 16
	results := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), uuid.New(), doctorID, at(14, 0), at(15, 0))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestAppointmentsForDoctor(t *testing.T) {
	repo := &mockAppointmentRepository{}
	userID := uuid.New()
	doctor := &model.Doctor{Base: model.Base{ID: uuid.New()}, UserID: userID}
	doctors := &mockDoctorRepository{byUserID: map[uuid.UUID]*model.Doctor{userID: doctor}}
	svc := newTestService(repo, doctors, nil)

	mine, err := svc.Book(context.Background(), uuid.New(), doctor.ID, at(9, 0), at(9, 30))
	require.NoError(t, err)
	// Another doctor's appointment with a patient id we do not care about.
	_, err = svc.Book(context.Background(), uuid.New(), uuid.New(), at(9, 0), at(9, 30))
	require.NoError(t, err)

	got, err := svc.AppointmentsFor(context.Background(), userID, model.RoleDoctor)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestAppointmentsForPatient(t *testing.T) {
	repo := &mockAppointmentRepository{}
	userID := uuid.New()
	patient := &model.Patient{Base: model.Base{ID: uuid.New()}, UserID: userID}
	patients := &mockPatientRepository{byUserID: map[uuid.UUID]*model.Patient{userID: patient}}
	svc := newTestService(repo, nil, patients)

	mine, err := svc.Book(context.Background(), patient.ID, uuid.New(), at(11, 0), at(11, 30))
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), uuid.New(), uuid.New(), at(11, 0), at(11, 30))
	require.NoError(t, err)

	got, err := svc.AppointmentsFor(context.Background(), userID, model.RolePatient)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestAppointmentsForUnknownRoleIsEmpty(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)

	got, err := svc.AppointmentsFor(context.Background(), uuid.New(), "admin")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppointmentsForMissingProfileIsEmpty(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)

	got, err := svc.AppointmentsFor(context.Background(), uuid.New(), model.RoleDoctor)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.AppointmentsFor(context.Background(), uuid.New(), model.RolePatient)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppointmentsForOrdering(t *testing.T) {
	repo := &mockAppointmentRepository{}
	userID := uuid.New()
	doctor := &model.Doctor{Base: model.Base{ID: uuid.New()}, UserID: userID}
	doctors := &mockDoctorRepository{byUserID: map[uuid.UUID]*model.Doctor{userID: doctor}}
	svc := newTestService(repo, doctors, nil)

	_, err := svc.Book(context.Background(), uuid.New(), doctor.ID, at(15, 0), at(15, 30))
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), uuid.New(), doctor.ID, at(9, 0), at(9, 30))
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), uuid.New(), doctor.ID, at(12, 0), at(12, 30))
	require.NoError(t, err)

	got, err := svc.AppointmentsFor(context.Background(), userID, model.RoleDoctor)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool {
		return got[i].StartTime.Before(got[j].StartTime)
	}))
}

func TestCancelTransitions(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)

	apt, err := svc.Book(context.Background(), uuid.New(), uuid.New(), at(9, 0), at(10, 0))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), apt.ID, "no longer needed"))

	stored, err := repo.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, "no longer needed", *stored.CancelReason)

	// Cancelling twice is rejected.
	err = svc.Cancel(context.Background(), apt.ID, "")
	assert.True(t, errors.IsValidation(err))
}

func TestCompleteOnlyFromBooked(t *testing.T) {
	repo := &mockAppointmentRepository{}
	svc := newTestService(repo, nil, nil)

	apt, err := svc.Book(context.Background(), uuid.New(), uuid.New(), at(9, 0), at(10, 0))
	require.NoError(t, err)

	require.NoError(t, svc.Complete(context.Background(), apt.ID))

	err = svc.Cancel(context.Background(), apt.ID, "")
	assert.True(t, errors.IsValidation(err), "completed appointments cannot be cancelled")
}
