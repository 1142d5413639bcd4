// Package identity adapts the Supabase GoTrue API to repository.IdentityProvider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	"github.com/memora-health/memora-api/pkg/supabase"
)

const (
	authPath       = "/auth/v1"
	adminUsersPath = authPath + "/admin/users"
)

// listedUser keeps ids as text so a malformed row still reaches reconcile.
type listedUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type SupabaseProvider struct {
	client *supabase.Client
}

func NewSupabaseProvider(client *supabase.Client) *SupabaseProvider {
	return &SupabaseProvider{client: client}
}

var _ repository.IdentityProvider = (*SupabaseProvider)(nil)

// auth returns a GoTrue client whose requests are bound to ctx. The key is
// added by the transport, so the SDK never holds it.
func (p *SupabaseProvider) auth(ctx context.Context, operation string) gotrue.Client {
	return gotrue.New("", "").
		WithCustomGoTrueURL(p.client.Endpoint(authPath)).
		WithClient(*p.client.HTTPClient(ctx, operation))
}

func (p *SupabaseProvider) CreateIdentity(ctx context.Context, email, password string, preverified bool) (*model.Identity, error) {
	resp, err := p.auth(ctx, "auth.create_user").AdminCreateUser(types.AdminCreateUserRequest{
		Email:        email,
		Password:     &password,
		EmailConfirm: preverified,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	identity := &model.Identity{Email: resp.Email, CreatedAt: resp.CreatedAt}
	if resp.ID != uuid.Nil {
		identity.ID = resp.ID.String()
	}
	return identity, nil
}

func (p *SupabaseProvider) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	err := p.auth(ctx, "auth.delete_user").AdminDeleteUser(types.AdminDeleteUserRequest{UserID: id})
	if supabase.StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("identity %s: %w", id, errors.Join(repository.ErrNotFound, err))
	}
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}

func (p *SupabaseProvider) Authenticate(ctx context.Context, email, password string) (*model.Session, error) {
	resp, err := p.auth(ctx, "auth.password_grant").SignInWithEmailPassword(email, password)
	if errors.Is(err, types.ErrInvalidTokenRequest) {
		return nil, repository.ErrInvalidCredentials
	}
	if status := supabase.StatusCode(err); status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return nil, errors.Join(repository.ErrInvalidCredentials, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return &model.Session{
		UserID:       resp.User.ID.String(),
		Email:        resp.User.Email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// ListIdentities reads one page of the admin user list. GoTrue's SDK lists
// without paging, so this call stays on the raw client.
func (p *SupabaseProvider) ListIdentities(ctx context.Context, page, perPage int) ([]*model.Identity, error) {
	var resp struct {
		Users []listedUser `json:"users"`
	}
	_, err := p.client.Do(ctx, supabase.Request{
		Operation: "auth.list_users",
		Method:    http.MethodGet,
		Path:      adminUsersPath,
		Query: url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	identities := make([]*model.Identity, 0, len(resp.Users))
	for _, u := range resp.Users {
		identities = append(identities, &model.Identity{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt})
	}
	return identities, nil
}
