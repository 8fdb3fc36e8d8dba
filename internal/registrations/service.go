// Package registrations admits animals into the campaign and notifies tutors
// through the message queue.
package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutirao/castracao-backend/internal/capacity"
	"github.com/mutirao/castracao-backend/internal/queue"
	dbpkg "github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/pagination"
	"github.com/mutirao/castracao-backend/pkg/phone"
)

// Service is the registration surface used by the HTTP controllers.
type Service interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, in UpdateStatusInput) (*UpdateStatusResult, error)
	ListForTutor(ctx context.Context, tutorID uuid.UUID, params pagination.Params) (pagination.Page[models.Registration], error)
}

type admissionGate interface {
	AdmitTx(ctx context.Context, tx *gorm.DB, cityText string) (capacity.Admission, error)
	AdmitKeyTx(ctx context.Context, tx *gorm.DB, cityKey string) (capacity.Admission, error)
}

type ServiceParams struct {
	DB       *gorm.DB
	Repo     *Repository
	Capacity admissionGate
	Queue    queue.Enqueuer
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	db       *gorm.DB
	repo     *Repository
	capacity admissionGate
	queue    queue.Enqueuer
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db required")
	}
	if params.Capacity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "capacity service required")
	}
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "message queue required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	repo := params.Repo
	if repo == nil {
		repo = NewRepository()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		db:       params.DB,
		repo:     repo,
		capacity: params.Capacity,
		queue:    params.Queue,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Register stores the tutor and registration and enqueues the confirmation in
// one transaction. Sold-out cities route the registration to the wait-list.
func (s *service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.TutorName = strings.TrimSpace(in.TutorName)
	in.City = strings.TrimSpace(in.City)
	in.AnimalName = strings.TrimSpace(in.AnimalName)
	if in.TutorName == "" || in.City == "" || in.AnimalName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tutor name, city and animal name are required")
	}
	if !in.Species.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "species must be dog or cat")
	}
	normalizedPhone, err := phone.Normalize(in.Phone)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid phone number")
	}

	now := s.now()
	var result RegisterResult
	err = dbpkg.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		admission, err := s.capacity.AdmitTx(ctx, tx, in.City)
		if err != nil {
			return err
		}

		tutor, err := s.repo.UpsertTutor(ctx, tx, &models.Tutor{
			Name:           in.TutorName,
			Phone:          normalizedPhone,
			PhoneSuffix:    phone.Suffix(normalizedPhone),
			Email:          optional(strings.ToLower(strings.TrimSpace(in.Email))),
			City:           in.City,
			CityNormalized: capacity.Normalize(in.City),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return fmt.Errorf("upsert tutor: %w", err)
		}

		status := enums.RegistrationStatusAwaitingService
		if !admission.Admit {
			status = enums.RegistrationStatusWaitlisted
		}
		reg := models.Registration{
			TutorID:         tutor.ID,
			AnimalName:      in.AnimalName,
			Species:         in.Species,
			Status:          status,
			Notes:           optional(strings.TrimSpace(in.Notes)),
			StatusChangedAt: now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if admission.Managed {
			key := admission.Bucket.Key
			reg.CityKey = &key
		}
		if err := s.repo.CreateRegistration(ctx, tx, &reg); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}

		kind := enums.MessageKindRegistrationConfirmed
		body := confirmationBody(tutor.Name, reg.AnimalName)
		if status == enums.RegistrationStatusWaitlisted {
			kind = enums.MessageKindRegistrationWaitlisted
			body = waitlistBody(tutor.Name, reg.AnimalName, admission.Bucket.Name)
		}
		if _, err := s.queue.EnqueueTx(ctx, tx, queue.EnqueueInput{
			Recipient:      tutor.Phone,
			Body:           body,
			Kind:           kind,
			DedupeKey:      fmt.Sprintf("registration:%s:created", reg.ID),
			RegistrationID: &reg.ID,
		}); err != nil {
			return fmt.Errorf("enqueue confirmation: %w", err)
		}

		reg.Tutor = tutor
		result = RegisterResult{
			Registration: reg,
			Waitlisted:   status == enums.RegistrationStatusWaitlisted,
			CityManaged:  admission.Managed,
		}
		if admission.Bucket != nil {
			bucket := *admission.Bucket
			if !result.Waitlisted {
				bucket = occupyOne(bucket)
			}
			result.Capacity = &bucket
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register animal")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"registration_id": result.Registration.ID.String(),
		"status":          result.Registration.Status,
		"city_managed":    result.CityManaged,
	})
	s.logg.Info(logCtx, "registration created")
	return &result, nil
}

// UpdateStatus applies an admin transition and notifies the tutor. When an
// active registration leaves the active set, the oldest wait-listed
// registration of the same city takes the freed slot.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, in UpdateStatusInput) (*UpdateStatusResult, error) {
	if !in.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}

	now := s.now()
	var result UpdateStatusResult
	err := dbpkg.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		reg, err := s.repo.GetForUpdate(ctx, tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "registration not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load registration")
		}
		if !reg.Status.CanTransitionTo(in.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move registration from %s to %s", reg.Status, in.Status))
		}

		wasActive := reg.Status.IsActive()
		if reg.Status == enums.RegistrationStatusWaitlisted && in.Status.IsActive() && reg.CityKey != nil {
			admission, err := s.capacity.AdmitKeyTx(ctx, tx, *reg.CityKey)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check capacity")
			}
			if !admission.Admit {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "city has no free slots")
			}
		}

		if err := s.repo.UpdateStatus(ctx, tx, reg.ID, in.Status, optional(strings.TrimSpace(in.Note)), now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update registration")
		}
		reg.Status = in.Status
		reg.StatusChangedAt = now
		reg.UpdatedAt = now
		if note := strings.TrimSpace(in.Note); note != "" {
			reg.Notes = &note
		}
		if err := s.notify(ctx, tx, reg, enums.MessageKindStatusChanged, statusChangedBody(reg.Tutor.Name, reg.AnimalName, reg.Status), now); err != nil {
			return err
		}
		result.Registration = *reg

		if wasActive && !in.Status.IsActive() && reg.CityKey != nil {
			promoted, err := s.promote(ctx, tx, *reg.CityKey, now)
			if err != nil {
				return err
			}
			result.Promoted = promoted
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update registration status")
	}

	fields := map[string]any{
		"registration_id": id.String(),
		"status":          in.Status,
	}
	if result.Promoted != nil {
		fields["promoted_registration_id"] = result.Promoted.ID.String()
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "registration status updated")
	return &result, nil
}

func (s *service) promote(ctx context.Context, tx *gorm.DB, cityKey string, now time.Time) (*models.Registration, error) {
	admission, err := s.capacity.AdmitKeyTx(ctx, tx, cityKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check capacity")
	}
	if !admission.Admit {
		return nil, nil
	}
	next, err := s.repo.OldestWaitlisted(ctx, tx, cityKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wait-list")
	}
	if next == nil {
		return nil, nil
	}
	if err := s.repo.UpdateStatus(ctx, tx, next.ID, enums.RegistrationStatusAwaitingService, nil, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote registration")
	}
	next.Status = enums.RegistrationStatusAwaitingService
	next.StatusChangedAt = now
	next.UpdatedAt = now
	if err := s.notify(ctx, tx, next, enums.MessageKindSlotPromoted, promotedBody(next.Tutor.Name, next.AnimalName), now); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, reg *models.Registration, kind enums.MessageKind, body string, at time.Time) error {
	if reg.Tutor == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "registration tutor not loaded")
	}
	_, err := s.queue.EnqueueTx(ctx, tx, queue.EnqueueInput{
		Recipient:      reg.Tutor.Phone,
		Body:           body,
		Kind:           kind,
		DedupeKey:      fmt.Sprintf("registration:%s:%s:%s:%d", reg.ID, kind, reg.Status, at.UnixNano()),
		RegistrationID: &reg.ID,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue notification")
	}
	return nil
}

// ListForTutor pages through the tutor's registrations, newest first.
func (s *service) ListForTutor(ctx context.Context, tutorID uuid.UUID, params pagination.Params) (pagination.Page[models.Registration], error) {
	if tutorID == uuid.Nil {
		return pagination.Page[models.Registration]{}, pkgerrors.New(pkgerrors.CodeValidation, "tutor id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Registration]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForTutor(ctx, s.db, tutorID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return pagination.Page[models.Registration]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list registrations")
	}
	return pagination.BuildPage(rows, params.Limit, func(r models.Registration) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	}), nil
}

func occupyOne(b capacity.Bucket) capacity.Bucket {
	b.Occupied++
	if b.Available > 0 {
		b.Available--
	}
	b.SoldOut = b.Available == 0
	return b
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
