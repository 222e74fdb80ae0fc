package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"k8s.io/utils/clock"

	"github.com/stacklok/poolsync/internal/httpclient"
)

// IdentityClient talks to the identity service
//
//go:generate mockgen -destination=mocks/mock_identity.go -package=mocks -source=identity.go IdentityClient
type IdentityClient interface {
	// SignIn exchanges an email and password for a credential
	SignIn(ctx context.Context, email, password string) (*Credential, error)

	// Refresh exchanges a refresh token for a new credential
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}

// identityToolkit implements IdentityClient against the Identity Toolkit
// REST API (":signInWithPassword") and the secure token endpoint.
type identityToolkit struct {
	httpClient httpclient.Client
	apiKey     string
	signInURL  string
	tokenURL   string
	clock      clock.PassiveClock
}

// NewIdentityToolkitClient creates an IdentityClient for the given endpoints
func NewIdentityToolkitClient(
	httpClient httpclient.Client, apiKey, signInURL, tokenURL string, clk clock.PassiveClock,
) IdentityClient {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &identityToolkit{
		httpClient: httpClient,
		apiKey:     apiKey,
		signInURL:  signInURL,
		tokenURL:   tokenURL,
		clock:      clk,
	}
}

func (c *identityToolkit) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	endpoint := fmt.Sprintf("%s:signInWithPassword?key=%s", c.signInURL, url.QueryEscape(c.apiKey))
	body := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	resp, err := c.httpClient.PostJSON(ctx, endpoint, body)
	if err != nil {
		return nil, classifyError("sign-in failed", err)
	}

	return c.parseCredential(resp, signInFields)
}

func (c *identityToolkit) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	endpoint := fmt.Sprintf("%s?key=%s", c.tokenURL, url.QueryEscape(c.apiKey))
	body := map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}

	resp, err := c.httpClient.PostJSON(ctx, endpoint, body)
	if err != nil {
		return nil, classifyError("token refresh failed", err)
	}

	cred, err := c.parseCredential(resp, refreshFields)
	if err != nil {
		return nil, err
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// responseFields names the JSON fields of one identity response shape
type responseFields struct {
	token        string
	refreshToken string
	expiresIn    string
	localID      string
}

var (
	signInFields = responseFields{
		token:        "idToken",
		refreshToken: "refreshToken",
		expiresIn:    "expiresIn",
		localID:      "localId",
	}
	// the token endpoint answers in snake_case
	refreshFields = responseFields{
		token:        "id_token",
		refreshToken: "refresh_token",
		expiresIn:    "expires_in",
		localID:      "user_id",
	}
)

func (c *identityToolkit) parseCredential(body []byte, fields responseFields) (*Credential, error) {
	if !gjson.ValidBytes(body) {
		return nil, &AuthError{Kind: KindInvalidResponse, Message: "identity response is not valid JSON"}
	}

	result := gjson.ParseBytes(body)
	token := result.Get(fields.token).String()
	if token == "" {
		return nil, &AuthError{Kind: KindInvalidResponse, Message: "identity response has no token"}
	}

	cred := &Credential{
		Token:        token,
		RefreshToken: result.Get(fields.refreshToken).String(),
		LocalID:      result.Get(fields.localID).String(),
	}

	claims := parseTokenClaims(token)
	if cred.LocalID == "" {
		cred.LocalID = claims.userID
	}

	// expiresIn is a decimal string of seconds; fall back to the token's exp claim
	if raw := result.Get(fields.expiresIn); raw.Exists() {
		seconds, err := strconv.ParseInt(raw.String(), 10, 64)
		if err != nil || seconds <= 0 {
			return nil, &AuthError{
				Kind:    KindInvalidResponse,
				Message: fmt.Sprintf("invalid expiresIn %q", raw.String()),
				Err:     err,
			}
		}
		cred.Expiry = c.clock.Now().Add(time.Duration(seconds) * time.Second)
	} else if !claims.expiry.IsZero() {
		cred.Expiry = claims.expiry
	} else {
		return nil, &AuthError{Kind: KindInvalidResponse, Message: "identity response has no expiry"}
	}

	return cred, nil
}

type tokenClaims struct {
	expiry time.Time
	userID string
}

// parseTokenClaims reads the exp and user_id claims of an ID token without
// verifying its signature; the token came straight from the identity service
// over TLS and is only inspected for scheduling.
func parseTokenClaims(token string) tokenClaims {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}
	}

	var out tokenClaims
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.expiry = exp.Time
	}
	if uid, ok := claims["user_id"].(string); ok {
		out.userID = uid
	} else if sub, err := claims.GetSubject(); err == nil {
		out.userID = sub
	}
	return out
}

// classifyError maps transport and HTTP failures to an AuthError, reading the
// {error:{code,message,status}} envelope when one is present
func classifyError(message string, err error) error {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return &AuthError{Kind: KindUnavailable, Message: message, Err: err}
	}

	detail := httpErr.Message
	if gjson.ValidBytes(httpErr.Body) {
		if m := gjson.GetBytes(httpErr.Body, "error.message"); m.Exists() {
			detail = m.String()
		}
	}

	kind := KindUnavailable
	if httpErr.IsClientError() {
		kind = KindBadCredentials
	}
	return &AuthError{
		Kind:    kind,
		Message: fmt.Sprintf("%s: %s", message, detail),
		Err:     err,
	}
}
