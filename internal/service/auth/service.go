package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
	"github.com/memora-health/memora-api/pkg/validator"
)

const (
	defaultRoleCacheTTL = time.Minute
	defaultCallTimeout  = 10 * time.Second
)

type Config struct {
	// JWTSecret is the project secret Supabase signs access tokens with.
	JWTSecret    string
	Audience     string
	RoleCacheTTL time.Duration
	CallTimeout  time.Duration
}

type LoginInput struct {
	Email    string     `json:"email" validate:"required"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role" validate:"omitempty,oneof=admin doctor"`
}

type LoginResult struct {
	UserID       uuid.UUID
	Email        string
	Role         model.Role
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

type Service struct {
	identity  repository.IdentityProvider
	profiles  repository.ProfileRepository
	validator *validator.Validator
	roles     *cache.Cache
	parser    *jwt.Parser
	secret    []byte
	cfg       Config
	logger    zerolog.Logger
}

func NewService(identity repository.IdentityProvider, profiles repository.ProfileRepository, cfg Config, logger zerolog.Logger) *Service {
	if cfg.RoleCacheTTL <= 0 {
		cfg.RoleCacheTTL = defaultRoleCacheTTL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Service{
		identity:  identity,
		profiles:  profiles,
		validator: validator.New(),
		roles:     cache.New(cfg.RoleCacheTTL, 2*cfg.RoleCacheTTL),
		parser:    jwt.NewParser(opts...),
		secret:    []byte(cfg.JWTSecret),
		cfg:       cfg,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

// Login signs in with the Identity Provider and checks the account's role
// against the one requested, if any.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	log := s.logger.With().Str("email", in.Email).Logger()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	session, err := s.identity.Authenticate(callCtx, in.Email, in.Password)
	cancel()
	if errors.Is(err, repository.ErrInvalidCredentials) {
		log.Info().Msg("Login rejected")
		return nil, apperrors.NewUnauthorized("Invalid email or password", err)
	}
	if err != nil {
		log.Error().Err(err).Msg("Login failed")
		return nil, apperrors.NewIdentityProvider("failed to sign in", err)
	}

	id, err := uuid.Parse(session.UserID)
	if err != nil {
		return nil, apperrors.NewInvariantViolation("provider returned malformed id")
	}

	role, err := s.roleOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Role != "" && role != in.Role {
		log.Info().Str("role", string(role)).Str("requested_role", string(in.Role)).Msg("Login role mismatch")
		return nil, apperrors.NewForbidden(fmt.Sprintf("Login failed: account is %s, not %s", role, in.Role), nil)
	}

	log.Info().Str("account_id", id.String()).Str("role", string(role)).Msg("Login succeeded")

	return &LoginResult{
		UserID:       id,
		Email:        in.Email,
		Role:         role,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
	}, nil
}

// Authorize verifies a Supabase access token and requires the caller's
// profile to hold role.
func (s *Service) Authorize(ctx context.Context, token string, role model.Role) (*model.Principal, error) {
	claims := &model.AccessClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token", err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token subject", err)
	}

	actual, err := s.roleOf(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewForbidden("Access denied", err)
		}
		return nil, err
	}
	if actual != role {
		return nil, apperrors.NewForbidden("Access denied", nil)
	}

	return &model.Principal{ID: id, Email: claims.Email, Role: actual}, nil
}

// roleOf resolves an account's role from its profile, caching valid roles.
func (s *Service) roleOf(ctx context.Context, id uuid.UUID) (model.Role, error) {
	key := id.String()
	if cached, ok := s.roles.Get(key); ok {
		return cached.(model.Role), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	profile, err := s.profiles.Get(callCtx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperrors.NewNotFound("profile", err)
	}
	if err != nil {
		return "", apperrors.NewProfileStore("failed to load profile", err)
	}
	// Stub rows carry no role until provisioning writes one; they are not cached.
	if !profile.Role.Valid() {
		s.logger.Warn().Str("account_id", key).Str("role", string(profile.Role)).Msg("Profile has no usable role")
		return "", apperrors.NewForbidden("Access denied", nil)
	}

	s.roles.Set(key, profile.Role, cache.DefaultExpiration)
	return profile.Role, nil
}

// Forget drops the cached role for id, so the next request reads the
// profile again.
func (s *Service) Forget(id uuid.UUID) {
	s.roles.Delete(id.String())
}

func (s *Service) validate(in LoginInput) error {
	err := s.validator.Validate(in)
	if err == nil {
		return nil
	}

	var verrs validator.Errors
	if errors.As(err, &verrs) {
		if missing := verrs.Missing(); len(missing) > 0 {
			return apperrors.NewValidation("Missing fields: " + strings.Join(missing, ", "))
		}
		return apperrors.NewValidation("invalid role")
	}
	return apperrors.NewInternal(err)
}
