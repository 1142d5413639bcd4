package notification

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/internal/email"
	"github.com/memora-health/memora-api/internal/model"
)

const welcomeSubject = "Your Memora doctor account is ready"

var welcomeTemplate = template.Must(template.New("welcome").Parse(`Hello {{.Name}},

An administrator has created your Memora account{{if .Specialty}} ({{.Specialty}}){{end}}.

Sign in at {{.LoginURL}} with this email address and the password your
administrator gave you. Please change it after your first sign-in.

The Memora team
`))

type Service struct {
	email    email.Service
	loginURL string
	logger   zerolog.Logger
}

func NewService(emailSvc email.Service, loginURL string, logger zerolog.Logger) *Service {
	return &Service{
		email:    emailSvc,
		loginURL: loginURL,
		logger:   logger.With().Str("component", "notification").Logger(),
	}
}

// DoctorCreated sends the welcome mail. The password is never part of it.
func (s *Service) DoctorCreated(ctx context.Context, profile *model.Profile) error {
	name := profile.FullName
	if name == "" {
		name = profile.Email
	}

	var body bytes.Buffer
	err := welcomeTemplate.Execute(&body, struct {
		Name      string
		Specialty string
		LoginURL  string
	}{name, profile.Specialty, s.loginURL})
	if err != nil {
		return fmt.Errorf("failed to render welcome email: %w", err)
	}

	if err := s.email.Send(ctx, profile.Email, welcomeSubject, body.String()); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	s.logger.Info().Str("account_id", profile.ID.String()).Msg("Welcome email sent")
	return nil
}
