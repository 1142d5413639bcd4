// Package reconcile compares the Identity Provider with the Profile Store and
// reports accounts that exist on only one side. It never repairs anything.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	"github.com/memora-health/memora-api/pkg/metrics"
)

const defaultPageSize = 200

type Config struct {
	PageSize    int
	CallTimeout time.Duration
}

type Report struct {
	StartedAt  time.Time
	Duration   time.Duration
	Identities int
	Profiles   int
	// OrphanedIdentities have no profile row.
	OrphanedIdentities []*model.Identity
	// OrphanedProfiles have no identity.
	OrphanedProfiles []uuid.UUID
}

type Service struct {
	identity repository.IdentityProvider
	profiles repository.ProfileRepository
	cfg      Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(identity repository.IdentityProvider, profiles repository.ProfileRepository,
	cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		identity: identity,
		profiles: profiles,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With().Str("component", "reconcile").Logger(),
	}
}

// Run builds one report, logs every orphan and updates the gauges.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	timer := prometheus.NewTimer(s.metrics.ReconcileDuration)
	defer timer.ObserveDuration()

	report, err := s.run(ctx)
	if err != nil {
		s.metrics.ReconcileRuns.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.logger.Error().Err(err).Msg("Reconciliation failed")
		return nil, err
	}
	s.metrics.ReconcileRuns.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.metrics.ReconcileOrphanedIdentities.Set(float64(len(report.OrphanedIdentities)))
	s.metrics.ReconcileOrphanedProfiles.Set(float64(len(report.OrphanedProfiles)))

	for _, identity := range report.OrphanedIdentities {
		s.logger.Warn().
			Str("account_id", identity.ID).
			Str("email", identity.Email).
			Time("created_at", identity.CreatedAt).
			Msg("Identity has no profile")
	}
	for _, id := range report.OrphanedProfiles {
		s.logger.Warn().Str("account_id", id.String()).Msg("Profile has no identity")
	}

	s.logger.Info().
		Int("identities", report.Identities).
		Int("profiles", report.Profiles).
		Int("orphaned_identities", len(report.OrphanedIdentities)).
		Int("orphaned_profiles", len(report.OrphanedProfiles)).
		Dur("duration", report.Duration).
		Msg("Reconciliation finished")

	return report, nil
}

func (s *Service) run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC()}

	identities, err := s.listIdentities(ctx)
	if err != nil {
		return nil, err
	}
	report.Identities = len(identities)

	profileIDs, err := s.listProfileIDs(ctx)
	if err != nil {
		return nil, err
	}
	report.Profiles = len(profileIDs)

	profiles := make(map[uuid.UUID]struct{}, len(profileIDs))
	for _, id := range profileIDs {
		profiles[id] = struct{}{}
	}

	seen := make(map[uuid.UUID]struct{}, len(identities))
	for _, identity := range identities {
		id, err := uuid.Parse(identity.ID)
		if err != nil {
			report.OrphanedIdentities = append(report.OrphanedIdentities, identity)
			continue
		}
		seen[id] = struct{}{}
		if _, ok := profiles[id]; !ok {
			report.OrphanedIdentities = append(report.OrphanedIdentities, identity)
		}
	}
	for _, id := range profileIDs {
		if _, ok := seen[id]; !ok {
			report.OrphanedProfiles = append(report.OrphanedProfiles, id)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

func (s *Service) listIdentities(ctx context.Context) ([]*model.Identity, error) {
	var all []*model.Identity
	for page := 1; ; page++ {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		batch, err := s.identity.ListIdentities(callCtx, page, s.cfg.PageSize)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("list identities page %d: %w", page, err)
		}
		all = append(all, batch...)
		if len(batch) < s.cfg.PageSize {
			return all, nil
		}
	}
}

func (s *Service) listProfileIDs(ctx context.Context) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	ids, err := s.profiles.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profile ids: %w", err)
	}
	return ids, nil
}
