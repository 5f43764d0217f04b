package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable wraps connection and timeout failures to the provider.
	ErrUnavailable = errors.New("identity provider unavailable")
	// ErrUserExists is returned when a create collides with an existing
	// provider-side account.
	ErrUserExists = errors.New("identity provider user already exists")
)

// Config locates the provider's admin API.
type Config struct {
	BaseURL  string
	Realm    string
	ClientID string
}

// Client talks to the identity provider's admin REST API. Every call
// carries a per-request timeout and bounded retry on transport errors only,
// so a slow provider cannot hang a signup and retries cannot double-create.
type Client struct {
	http   *resty.Client
	cfg    Config
	tokens *TokenSource
	lg     *zap.SugaredLogger
}

func New(cfg Config, tokens *TokenSource, lg *zap.SugaredLogger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: client, cfg: cfg, tokens: tokens, lg: lg}
}

// UserRecord is the provider-facing projection of a user.
type UserRecord struct {
	Email       string
	FirstName   string
	LastName    string
	DateOfBirth string
	Country     string
	Phone       string
	Role        string
	TenantID    string
	AppUserID   string
}

type userRepresentation struct {
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username"`
	Email         string              `json:"email"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Enabled       bool                `json:"enabled"`
	EmailVerified bool                `json:"emailVerified"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

type realmRole struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func representation(rec UserRecord) userRepresentation {
	attrs := map[string][]string{}
	put := func(k, v string) {
		if v != "" {
			attrs[k] = []string{v}
		}
	}
	put("dateOfBirth", rec.DateOfBirth)
	put("country", rec.Country)
	put("phone", rec.Phone)
	put("role", rec.Role)
	put("tenantId", rec.TenantID)
	put("app_user_id", rec.AppUserID)
	return userRepresentation{
		Username:      rec.Email,
		Email:         rec.Email,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		Enabled:       true,
		EmailVerified: true,
		Attributes:    attrs,
	}
}

func (c *Client) adminReq(ctx context.Context) (*resty.Request, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.http.R().SetContext(ctx).SetAuthToken(tok), nil
}

func (c *Client) realmPath(parts ...string) string {
	return "/admin/realms/" + c.cfg.Realm + "/" + strings.Join(parts, "/")
}

// CreateUser creates the account, assigns the initial role and sets the
// password credential. Returns the provider's user id. Role assignment
// failure does not fail the create; a user without their role is repairable,
// a half-created user is not.
func (c *Client) CreateUser(ctx context.Context, rec UserRecord, password string) (string, error) {
	if rec.Role != "" {
		if _, err := c.EnsureRole(ctx, rec.Role, ""); err != nil {
			return "", err
		}
	}

	req, err := c.adminReq(ctx)
	if err != nil {
		return "", err
	}
	resp, err := req.SetBody(representation(rec)).Post(c.realmPath("users"))
	if err != nil {
		return "", fmt.Errorf("create user: %w: %v", ErrUnavailable, err)
	}
	switch resp.StatusCode() {
	case http.StatusCreated:
	case http.StatusConflict:
		return "", ErrUserExists
	default:
		return "", fmt.Errorf("create user: unexpected status %d", resp.StatusCode())
	}
	loc := resp.Header().Get("Location")
	if loc == "" {
		return "", errors.New("create user: missing Location header")
	}
	externalID := path.Base(loc)

	if rec.Role != "" {
		if err := c.AssignRole(ctx, externalID, rec.Role); err != nil {
			c.lg.Warnw("role assignment failed after user create",
				"email", rec.Email, "role", rec.Role, "error", err)
		}
	}
	if password != "" {
		if err := c.setPassword(ctx, externalID, password); err != nil {
			return "", err
		}
	}
	c.lg.Infow("created user in identity provider", "email", rec.Email, "external_id", externalID)
	return externalID, nil
}

func (c *Client) setPassword(ctx context.Context, externalID, password string) error {
	req, err := c.adminReq(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{"type": "password", "value": password, "temporary": false}
	resp, err := req.SetBody(body).Put(c.realmPath("users", externalID, "reset-password"))
	if err != nil {
		return fmt.Errorf("set password: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("set password: unexpected status %d", resp.StatusCode())
	}
	return nil
}

// FindUserByEmail returns the provider's user id, or "" when no account
// matches. Matching is exact on the email.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (string, error) {
	req, err := c.adminReq(ctx)
	if err != nil {
		return "", err
	}
	var users []userRepresentation
	resp, err := req.
		SetQueryParams(map[string]string{"email": email, "exact": "true"}).
		SetResult(&users).
		Get(c.realmPath("users"))
	if err != nil {
		return "", fmt.Errorf("find user: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("find user: unexpected status %d", resp.StatusCode())
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u.ID, nil
		}
	}
	return "", nil
}

// UpdateUser pushes profile fields for an existing provider account.
func (c *Client) UpdateUser(ctx context.Context, externalID string, rec UserRecord) error {
	req, err := c.adminReq(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetBody(representation(rec)).Put(c.realmPath("users", externalID))
	if err != nil {
		return fmt.Errorf("update user: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("update user: unexpected status %d", resp.StatusCode())
	}
	return nil
}

// DeleteUser removes the provider account. An already-absent account is
// success; the remote side may have been cleaned up independently.
func (c *Client) DeleteUser(ctx context.Context, externalID string) error {
	req, err := c.adminReq(ctx)
	if err != nil {
		return err
	}
	resp, err := req.Delete(c.realmPath("users", externalID))
	if err != nil {
		return fmt.Errorf("delete user: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("delete user: unexpected status %d", resp.StatusCode())
	}
	return nil
}

// SetAttribute writes a single custom attribute, preserving the rest of the
// representation.
func (c *Client) SetAttribute(ctx context.Context, externalID, key, value string) error {
	req, err := c.adminReq(ctx)
	if err != nil {
		return err
	}
	var rep userRepresentation
	resp, err := req.SetResult(&rep).Get(c.realmPath("users", externalID))
	if err != nil {
		return fmt.Errorf("get user: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("get user: unexpected status %d", resp.StatusCode())
	}
	if rep.Attributes == nil {
		rep.Attributes = map[string][]string{}
	}
	rep.Attributes[key] = []string{value}

	req2, err := c.adminReq(ctx)
	if err != nil {
		return err
	}
	resp, err = req2.SetBody(rep).Put(c.realmPath("users", externalID))
	if err != nil {
		return fmt.Errorf("update user: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("update user: unexpected status %d", resp.StatusCode())
	}
	return nil
}

// Authenticate runs a password grant against the realm. Returns false (not
// an error) on rejected credentials.
func (c *Client) Authenticate(ctx context.Context, email, password string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type": "password",
			"client_id":  c.cfg.ClientID,
			"username":   email,
			"password":   password,
		}).
		Post("/realms/" + c.cfg.Realm + "/protocol/openid-connect/token")
	if err != nil {
		return false, fmt.Errorf("authenticate: %w: %v", ErrUnavailable, err)
	}
	switch {
	case resp.IsSuccess():
		return true, nil
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusBadRequest:
		return false, nil
	default:
		return false, fmt.Errorf("authenticate: unexpected status %d", resp.StatusCode())
	}
}

// AssignRole maps a realm role onto the user. Assigning a role the user
// already holds is success.
func (c *Client) AssignRole(ctx context.Context, externalID, roleName string) error {
	role, err := c.findRole(ctx, roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("assign role: role %q not found in provider", roleName)
	}

	has, err := c.userHasRole(ctx, externalID, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	req, err := c.adminReq(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetBody([]realmRole{*role}).
		Post(c.realmPath("users", externalID, "role-mappings", "realm"))
	if err != nil {
		return fmt.Errorf("assign role: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		// A concurrent assignment can land between the check and the post.
		if has, herr := c.userHasRole(ctx, externalID, roleName); herr == nil && has {
			return nil
		}
		return fmt.Errorf("assign role: unexpected status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) userHasRole(ctx context.Context, externalID, roleName string) (bool, error) {
	req, err := c.adminReq(ctx)
	if err != nil {
		return false, err
	}
	var mapped []realmRole
	resp, err := req.SetResult(&mapped).
		Get(c.realmPath("users", externalID, "role-mappings", "realm"))
	if err != nil {
		return false, fmt.Errorf("role mappings: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("role mappings: unexpected status %d", resp.StatusCode())
	}
	for _, r := range mapped {
		if r.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) findRole(ctx context.Context, roleName string) (*realmRole, error) {
	req, err := c.adminReq(ctx)
	if err != nil {
		return nil, err
	}
	var role realmRole
	resp, err := req.SetResult(&role).Get(c.realmPath("roles", roleName))
	if err != nil {
		return nil, fmt.Errorf("find role: %w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("find role: unexpected status %d", resp.StatusCode())
	}
	return &role, nil
}

// EnsureRole creates the realm role if missing and returns its id.
// First-write-wins: a conflict on create means another writer got there,
// which is as good as creating it ourselves.
func (c *Client) EnsureRole(ctx context.Context, roleName, description string) (string, error) {
	role, err := c.findRole(ctx, roleName)
	if err != nil {
		return "", err
	}
	if role != nil {
		return role.ID, nil
	}

	req, err := c.adminReq(ctx)
	if err != nil {
		return "", err
	}
	resp, err := req.SetBody(realmRole{Name: roleName, Description: description}).
		Post(c.realmPath("roles"))
	if err != nil {
		return "", fmt.Errorf("create role: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusConflict {
		return "", fmt.Errorf("create role: unexpected status %d", resp.StatusCode())
	}

	role, err = c.findRole(ctx, roleName)
	if err != nil {
		return "", err
	}
	if role == nil {
		return "", fmt.Errorf("create role: %q missing after create", roleName)
	}
	return role.ID, nil
}

// DeleteRole removes the realm role; already absent is success.
func (c *Client) DeleteRole(ctx context.Context, roleName string) error {
	req, err := c.adminReq(ctx)
	if err != nil {
		return err
	}
	resp, err := req.Delete(c.realmPath("roles", roleName))
	if err != nil {
		return fmt.Errorf("delete role: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("delete role: unexpected status %d", resp.StatusCode())
	}
	return nil
}
