package medical

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medidesk/clinic-api/internal/model"
	"github.com/medidesk/clinic-api/internal/repository"
)

type Service struct {
	repo repository.MedicalRecordRepository
}

func NewService(repo repository.MedicalRecordRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req *model.CreateMedicalRecordRequest) (*model.MedicalRecord, error) {
	record := &model.MedicalRecord{
		Base:      model.Base{ID: uuid.New()},
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Title:     req.Title,
		Notes:     req.Notes,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create medical record: %w", err)
	}
	return record, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalRecord, error) {
	records, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medical records: %w", err)
	}
	return records, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
