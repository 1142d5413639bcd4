// Package provisioning creates and deletes doctor accounts across the
// Identity Provider and the Profile Store. The two systems share no
// transaction, so a failed profile write is undone by deleting the identity
// that was just created.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
	"github.com/memora-health/memora-api/pkg/metrics"
	"github.com/memora-health/memora-api/pkg/validator"
)

const (
	WriteModeUpdate = "update"
	WriteModeInsert = "insert"

	opCreate = "create_doctor"
	opDelete = "delete_doctor"

	defaultCallTimeout = 10 * time.Second
)

// Emitter publishes domain events. Failures are the emitter's to log.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// Notifier is told about accounts that were fully provisioned.
type Notifier interface {
	DoctorCreated(ctx context.Context, profile *model.Profile) error
}

// RoleCache drops any cached role for an account whose profile changed.
type RoleCache interface {
	Forget(id uuid.UUID)
}

type Config struct {
	// WriteMode is the canonical profile write. "update" expects a stub row
	// created by an auth trigger and falls back to insert; "insert" falls
	// back to update when the row already exists.
	WriteMode string
	// CallTimeout bounds each call to an external system.
	CallTimeout time.Duration
}

type CreateDoctorInput struct {
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	FullName  string `json:"fullName" validate:"required"`
	Specialty string `json:"specialty" validate:"required"`
}

type CreateDoctorResult struct {
	AccountID uuid.UUID
	Email     string
	FullName  string
	Specialty string
}

type DeleteDoctorResult struct {
	DeletedID           uuid.UUID
	AppointmentsDeleted int64
}

type Service struct {
	identity     repository.IdentityProvider
	profiles     repository.ProfileRepository
	appointments repository.AppointmentRepository

	validator *validator.Validator
	events    Emitter
	notifier  Notifier
	roles     RoleCache
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	cfg       Config
	now       func() time.Time
}

type Option func(*Service)

func WithEmitter(e Emitter) Option {
	return func(s *Service) { s.events = e }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithRoleCache(c RoleCache) Option {
	return func(s *Service) { s.roles = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(
	identity repository.IdentityProvider,
	profiles repository.ProfileRepository,
	appointments repository.AppointmentRepository,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.WriteMode == "" {
		cfg.WriteMode = WriteModeUpdate
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	s := &Service{
		identity:     identity,
		profiles:     profiles,
		appointments: appointments,
		validator:    validator.New(),
		logger:       zerolog.Nop(),
		cfg:          cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	s.logger = s.logger.With().Str("component", "provisioning").Logger()

	return s
}

// CreateDoctorAccount creates a pre-verified identity and its doctor profile.
// If the profile cannot be written the identity is deleted again and the
// profile store error is returned, even when that delete fails too.
func (s *Service) CreateDoctorAccount(ctx context.Context, in CreateDoctorInput) (*CreateDoctorResult, error) {
	res, err := s.createDoctorAccount(ctx, in)
	s.record(opCreate, err)
	return res, err
}

func (s *Service) createDoctorAccount(ctx context.Context, in CreateDoctorInput) (*CreateDoctorResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Specialty = strings.TrimSpace(in.Specialty)

	if err := s.validate(in); err != nil {
		return nil, err
	}

	log := s.logger.With().Str("email", in.Email).Logger()

	var identity *model.Identity
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		identity, err = s.identity.CreateIdentity(ctx, in.Email, in.Password, true)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Msg("Identity creation failed")
		return nil, apperrors.NewIdentityProvider(publicMessage(err, "failed to create doctor account"), err)
	}

	if identity == nil || identity.ID == "" {
		log.Error().Msg("Identity provider returned no id, the identity may be orphaned")
		s.metrics.OrphanedIdentities.WithLabelValues("missing_id").Inc()
		return nil, apperrors.NewInvariantViolation("provider returned no id")
	}

	id, err := uuid.Parse(identity.ID)
	if err != nil {
		log.Error().Str("account_id", identity.ID).Msg("Identity provider returned a malformed id, the identity is orphaned")
		s.metrics.OrphanedIdentities.WithLabelValues("malformed_id").Inc()
		s.emit(ctx, model.EventIdentityOrphaned, model.DoctorEventPayload{
			AccountID: identity.ID,
			Email:     in.Email,
			Reason:    "malformed_id",
		})
		return nil, apperrors.NewInvariantViolation("provider returned malformed id")
	}
	log = log.With().Str("account_id", id.String()).Logger()

	profile := &model.Profile{
		ID:        id,
		Email:     in.Email,
		FullName:  in.FullName,
		Specialty: in.Specialty,
		Role:      model.RoleDoctor,
		CreatedAt: s.now().UTC(),
	}

	if err := s.writeProfile(ctx, profile); err != nil {
		log.Error().Err(err).Msg("Profile write failed, rolling back identity")
		s.compensate(ctx, profile, err, log)
		return nil, apperrors.NewProfileStore(publicMessage(err, "failed to save doctor profile"), err)
	}
	s.forget(id)

	log.Info().Msg("Doctor account created")

	s.emit(ctx, model.EventDoctorCreated, model.DoctorEventPayload{
		AccountID: id.String(),
		Email:     profile.Email,
		FullName:  profile.FullName,
		Specialty: profile.Specialty,
	})
	if s.notifier != nil {
		if err := s.notifier.DoctorCreated(context.WithoutCancel(ctx), profile); err != nil {
			log.Warn().Err(err).Msg("Welcome notification failed")
		}
	}

	return &CreateDoctorResult{
		AccountID: id,
		Email:     profile.Email,
		FullName:  profile.FullName,
		Specialty: profile.Specialty,
	}, nil
}

// writeProfile performs the canonical write and its fallback. "No row
// matched" is never treated as success.
func (s *Service) writeProfile(ctx context.Context, profile *model.Profile) error {
	patch := &model.ProfilePatch{
		FullName:  profile.FullName,
		Specialty: profile.Specialty,
		Role:      profile.Role,
	}

	if s.cfg.WriteMode == WriteModeInsert {
		err := s.insertProfile(ctx, profile)
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
		matched, err := s.updateProfile(ctx, profile.ID, patch)
		if err != nil {
			return err
		}
		if matched == 0 {
			return fmt.Errorf("profile %s reported as existing but no row matched the update", profile.ID)
		}
		return nil
	}

	matched, err := s.updateProfile(ctx, profile.ID, patch)
	if err != nil {
		return err
	}
	if matched > 0 {
		return nil
	}
	return s.insertProfile(ctx, profile)
}

func (s *Service) insertProfile(ctx context.Context, profile *model.Profile) error {
	return s.call(ctx, func(ctx context.Context) error {
		return s.profiles.Insert(ctx, profile)
	})
}

func (s *Service) updateProfile(ctx context.Context, id uuid.UUID, patch *model.ProfilePatch) (int64, error) {
	var matched int64
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		matched, err = s.profiles.Update(ctx, id, patch)
		return err
	})
	return matched, err
}

// compensate deletes the identity created for profile. Its failure is logged
// and reported as an orphan but never replaces the profile error.
func (s *Service) compensate(ctx context.Context, profile *model.Profile, cause error, log zerolog.Logger) {
	err := s.call(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.identity.DeleteIdentity(ctx, profile.ID)
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.metrics.Compensations.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.metrics.OrphanedIdentities.WithLabelValues("compensation_failed").Inc()
		log.Error().
			Err(err).
			AnErr("profile_error", cause).
			Msg("Compensating identity delete failed, identity is orphaned")
		s.emit(ctx, model.EventIdentityOrphaned, model.DoctorEventPayload{
			AccountID: profile.ID.String(),
			Email:     profile.Email,
			Reason:    "compensation_failed",
		})
		return
	}

	s.metrics.Compensations.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Warn().Msg("Identity rolled back after profile write failure")
}

// DeleteDoctorAccount removes the doctor's appointments, then the profile,
// then the identity. A failure in either of the first two steps stops
// before the identity is touched.
func (s *Service) DeleteDoctorAccount(ctx context.Context, doctorID string) (*DeleteDoctorResult, error) {
	res, err := s.deleteDoctorAccount(ctx, doctorID)
	s.record(opDelete, err)
	return res, err
}

func (s *Service) deleteDoctorAccount(ctx context.Context, doctorID string) (*DeleteDoctorResult, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, apperrors.NewValidation("Doctor ID required")
	}
	id, err := uuid.Parse(doctorID)
	if err != nil {
		return nil, apperrors.NewValidation("invalid doctor ID")
	}

	log := s.logger.With().Str("account_id", id.String()).Logger()

	var removed int64
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.appointments.DeleteByDoctor(ctx, id)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete doctor appointments")
		return nil, apperrors.NewProfileStore(publicMessage(err, "failed to delete doctor appointments"), err)
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.profiles.Delete(ctx, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("doctor", err)
	}
	if err != nil {
		log.Error().Err(err).Int64("appointments_deleted", removed).Msg("Failed to delete doctor profile")
		return nil, apperrors.NewProfileStore(publicMessage(err, "failed to delete doctor profile"), err)
	}
	s.forget(id)

	// The profile is gone; finish the identity even if the caller went away.
	err = s.call(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.identity.DeleteIdentity(ctx, id)
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		log.Warn().Msg("Identity was already deleted")
	case err != nil:
		s.metrics.OrphanedIdentities.WithLabelValues("identity_delete_failed").Inc()
		log.Error().Err(err).Msg("Identity delete failed after profile removal, identity is orphaned")
		s.emit(ctx, model.EventIdentityOrphaned, model.DoctorEventPayload{
			AccountID: id.String(),
			Reason:    "identity_delete_failed",
		})
		return nil, apperrors.NewIdentityProvider(publicMessage(err, "failed to delete doctor identity"), err)
	}

	log.Info().Int64("appointments_deleted", removed).Msg("Doctor account deleted")
	s.emit(ctx, model.EventDoctorDeleted, model.DoctorEventPayload{
		AccountID:           id.String(),
		AppointmentsDeleted: removed,
	})

	return &DeleteDoctorResult{DeletedID: id, AppointmentsDeleted: removed}, nil
}

func (s *Service) validate(in CreateDoctorInput) error {
	err := s.validator.Validate(in)
	if err == nil {
		return nil
	}

	var verrs validator.Errors
	if errors.As(err, &verrs) {
		if missing := verrs.Missing(); len(missing) > 0 {
			return apperrors.NewValidation("Missing fields: " + strings.Join(missing, ", "))
		}
		return apperrors.NewValidation(verrs.Error())
	}
	return apperrors.NewInternal(err)
}

// call runs fn with the per-call timeout applied.
func (s *Service) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) emit(ctx context.Context, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	_ = s.call(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.events.Emit(ctx, eventType, payload)
	})
}

func (s *Service) forget(id uuid.UUID) {
	if s.roles != nil {
		s.roles.Forget(id)
	}
}

func (s *Service) record(op string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = apperrors.CodeOf(err).String()
	}
	s.metrics.ProvisioningOperations.WithLabelValues(op, outcome).Inc()
}
