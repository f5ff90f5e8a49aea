package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/clinic-api/internal/model"
	"github.com/medidesk/clinic-api/pkg/auth"
	"github.com/medidesk/clinic-api/pkg/errors"
	"github.com/medidesk/clinic-api/pkg/security"
)

type mockUserRepository struct {
	byEmail map[string]*model.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{byEmail: map[string]*model.User{}}
}

func (m *mockUserRepository) Create(ctx context.Context, tx *sqlx.Tx, user *model.User) error {
	m.byEmail[user.Email] = user
	return nil
}

func (m *mockUserRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.NewNotFound("user", nil)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, errors.NewNotFound("user", nil)
}

func (m *mockUserRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type mockDoctorRepository struct {
	created []*model.Doctor
}

func (m *mockDoctorRepository) Create(ctx context.Context, tx *sqlx.Tx, d *model.Doctor) error {
	m.created = append(m.created, d)
	return nil
}

func (m *mockDoctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return nil, errors.NewNotFound("doctor", nil)
}

func (m *mockDoctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	return nil, errors.NewNotFound("doctor", nil)
}

func (m *mockDoctorRepository) Update(ctx context.Context, d *model.Doctor) error { return nil }

func (m *mockDoctorRepository) List(ctx context.Context) ([]*model.Doctor, error) { return nil, nil }

type mockPatientRepository struct {
	created []*model.Patient
}

func (m *mockPatientRepository) Create(ctx context.Context, tx *sqlx.Tx, p *model.Patient) error {
	m.created = append(m.created, p)
	return nil
}

func (m *mockPatientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return nil, errors.NewNotFound("patient", nil)
}

func (m *mockPatientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	return nil, errors.NewNotFound("patient", nil)
}

func (m *mockPatientRepository) Update(ctx context.Context, p *model.Patient) error { return nil }

func (m *mockPatientRepository) List(ctx context.Context) ([]*model.Patient, error) { return nil, nil }

func newTestAuth() (*Service, *mockUserRepository, *mockDoctorRepository, *mockPatientRepository) {
	users := newMockUserRepository()
	doctors := &mockDoctorRepository{}
	patients := &mockPatientRepository{}
	svc := NewService(
		users, doctors, patients,
		auth.NewJWTService("test-secret", time.Hour),
		security.NewBcryptHasher(4),
	)
	return svc, users, doctors, patients
}

func doctorSignup(email string) *model.SignupRequest {
	return &model.SignupRequest{
		Email:     email,
		Password:  "hunter2hunter2",
		Role:      model.RoleDoctor,
		FirstName: "Ada",
		LastName:  "Nguyen",
		Specialty: "Cardiology",
	}
}

func patientSignup(email string) *model.SignupRequest {
	birth := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	return &model.SignupRequest{
		Email:     email,
		Password:  "hunter2hunter2",
		Role:      model.RolePatient,
		FirstName: "Sam",
		LastName:  "Okafor",
		BirthDate: &birth,
	}
}

func TestSignupDoctorCreatesUserAndProfile(t *testing.T) {
	svc, users, doctors, _ := newTestAuth()

	user, err := svc.Signup(context.Background(), doctorSignup("dr@example.com"))
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, user.Role)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)

	require.Len(t, doctors.created, 1)
	assert.Equal(t, user.ID, doctors.created[0].UserID)
	assert.Equal(t, "Cardiology", doctors.created[0].Specialty)

	stored, err := users.GetByEmail(context.Background(), "dr@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestSignupPatientCreatesProfile(t *testing.T) {
	svc, _, _, patients := newTestAuth()

	user, err := svc.Signup(context.Background(), patientSignup("pt@example.com"))
	require.NoError(t, err)

	require.Len(t, patients.created, 1)
	assert.Equal(t, user.ID, patients.created[0].UserID)
}

func TestSignupValidation(t *testing.T) {
	svc, _, _, _ := newTestAuth()

	req := doctorSignup("dr@example.com")
	req.Specialty = "  "
	_, err := svc.Signup(context.Background(), req)
	assert.True(t, errors.IsValidation(err), "doctor without specialty is rejected")

	req = patientSignup("pt@example.com")
	req.BirthDate = nil
	_, err = svc.Signup(context.Background(), req)
	assert.True(t, errors.IsValidation(err), "patient without birth date is rejected")

	req = doctorSignup("dr@example.com")
	req.Role = "admin"
	_, err = svc.Signup(context.Background(), req)
	assert.True(t, errors.IsValidation(err), "unknown role is rejected")

	req = doctorSignup("dr@example.com")
	req.Password = "short"
	_, err = svc.Signup(context.Background(), req)
	assert.True(t, errors.IsValidation(err), "short password is rejected")
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	svc, _, _, _ := newTestAuth()

	_, err := svc.Signup(context.Background(), doctorSignup("dup@example.com"))
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), patientSignup("dup@example.com"))
	assert.True(t, errors.IsConflict(err))
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, _, _, _ := newTestAuth()

	user, err := svc.Signup(context.Background(), doctorSignup("dr@example.com"))
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), "dr@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.EqualValues(t, 3600, resp.ExpiresIn)

	claims, err := svc.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "dr@example.com", claims.Email)
	assert.Equal(t, model.RoleDoctor, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _, _ := newTestAuth()

	_, err := svc.Signup(context.Background(), doctorSignup("dr@example.com"))
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "dr@example.com", "wrong-password")
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrUnauthorized, appErr.Code)

	_, err = svc.Login(context.Background(), "nobody@example.com", "hunter2hunter2")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrUnauthorized, appErr.Code)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc, _, _, _ := newTestAuth()

	other := auth.NewJWTService("other-secret", time.Hour)
	token, err := other.GenerateAccessToken(&model.User{
		Base:  model.Base{ID: uuid.New()},
		Email: "dr@example.com",
		Role:  model.RoleDoctor,
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.Error(t, err)
}
