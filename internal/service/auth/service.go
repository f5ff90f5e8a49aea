package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/clinic-api/internal/model"
	"github.com/medidesk/clinic-api/internal/repository"
	"github.com/medidesk/clinic-api/pkg/auth"
	"github.com/medidesk/clinic-api/pkg/errors"
	"github.com/medidesk/clinic-api/pkg/security"
)

type Service struct {
	userRepo    repository.UserRepository
	doctorRepo  repository.DoctorRepository
	patientRepo repository.PatientRepository
	jwtSvc      auth.JWTService
	hasher      security.PasswordHasher
}

func NewService(
	userRepo repository.UserRepository,
	doctorRepo repository.DoctorRepository,
	patientRepo repository.PatientRepository,
	jwtSvc auth.JWTService,
	hasher security.PasswordHasher,
) *Service {
	return &Service{
		userRepo:    userRepo,
		doctorRepo:  doctorRepo,
		patientRepo: patientRepo,
		jwtSvc:      jwtSvc,
		hasher:      hasher,
	}
}

// Signup creates the account and its role profile in one transaction.
// Doctors require a specialty, patients a birth date.
func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error) {
	switch req.Role {
	case model.RoleDoctor:
		if strings.TrimSpace(req.Specialty) == "" {
			return nil, errors.NewValidation("doctors require a specialty")
		}
	case model.RolePatient:
		if req.BirthDate == nil {
			return nil, errors.NewValidation("patients require a birth date")
		}
	default:
		return nil, errors.NewValidation("role must be doctor or patient")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.NewValidation(err.Error())
	}

	if existing, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, errors.NewConflict("email already registered")
	}

	user := &model.User{
		Base:         model.Base{ID: uuid.New()},
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}

	err = s.userRepo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}

		switch req.Role {
		case model.RoleDoctor:
			doctor := &model.Doctor{
				Base:      model.Base{ID: uuid.New()},
				UserID:    user.ID,
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Specialty: req.Specialty,
			}
			return s.doctorRepo.Create(ctx, tx, doctor)
		case model.RolePatient:
			patient := &model.Patient{
				Base:      model.Base{ID: uuid.New()},
				UserID:    user.ID,
				FirstName: req.FirstName,
				LastName:  req.LastName,
				BirthDate: *req.BirthDate,
			}
			return s.patientRepo.Create(ctx, tx, patient)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.NewUnauthorized(fmt.Errorf("invalid credentials"))
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, errors.NewUnauthorized(fmt.Errorf("invalid credentials"))
	}

	token, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtSvc.Expiry().Seconds()),
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *Service) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, errors.NewUnauthorized(err)
	}
	return claims, nil
}
