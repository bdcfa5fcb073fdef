// Package oauth resolves provider access tokens from the social sign-in popup
// into provider profiles.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
	"github.com/suiichiba/marketplace/internal/infrastructure/httpclient"
)

// Verifier implements ports.OAuthVerifier for Google and Facebook.
type Verifier struct {
	google   *httpclient.Client
	facebook *httpclient.Client
}

// New returns a verifier. googleUserInfoURL is the full OpenID userinfo
// endpoint; facebookGraphURL is the Graph API root.
func New(googleUserInfoURL, facebookGraphURL string, timeout time.Duration) *Verifier {
	return &Verifier{
		google:   httpclient.New(googleUserInfoURL, timeout),
		facebook: httpclient.New(facebookGraphURL, timeout),
	}
}

func (v *Verifier) Verify(ctx context.Context, provider, accessToken string) (*ports.OAuthProfile, error) {
	if accessToken == "" {
		return nil, domain.ErrPopupDismissed
	}
	switch provider {
	case domain.ProviderGoogle:
		return v.verifyGoogle(ctx, accessToken)
	case domain.ProviderFacebook:
		return v.verifyFacebook(ctx, accessToken)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, provider)
	}
}

func (v *Verifier) verifyGoogle(ctx context.Context, token string) (*ports.OAuthProfile, error) {
	resp, err := v.google.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("")
	if err := checkToken("google userinfo", httpclient.CheckResponse("google userinfo", resp, err)); err != nil {
		return nil, err
	}

	body := resp.Body()
	p := &ports.OAuthProfile{
		Provider:      domain.ProviderGoogle,
		Subject:       gjson.GetBytes(body, "sub").String(),
		Email:         gjson.GetBytes(body, "email").String(),
		EmailVerified: gjson.GetBytes(body, "email_verified").Bool(),
		Name:          gjson.GetBytes(body, "name").String(),
		PictureURL:    gjson.GetBytes(body, "picture").String(),
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("google userinfo: %w: no subject in response", domain.ErrRemote)
	}
	return p, nil
}

// verifyFacebook reads /me. Facebook only returns confirmed addresses, so
// the email is treated as verified.
func (v *Verifier) verifyFacebook(ctx context.Context, token string) (*ports.OAuthProfile, error) {
	resp, err := v.facebook.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,name,email,picture.type(large)",
			"access_token": token,
		}).
		Get("/me")
	if err := checkToken("facebook me", httpclient.CheckResponse("facebook me", resp, err)); err != nil {
		return nil, err
	}

	body := resp.Body()
	p := &ports.OAuthProfile{
		Provider:   domain.ProviderFacebook,
		Subject:    gjson.GetBytes(body, "id").String(),
		Email:      gjson.GetBytes(body, "email").String(),
		Name:       gjson.GetBytes(body, "name").String(),
		PictureURL: gjson.GetBytes(body, "picture.data.url").String(),
	}
	p.EmailVerified = p.Email != ""
	if p.Subject == "" {
		return nil, fmt.Errorf("facebook me: %w: no id in response", domain.ErrRemote)
	}
	return p, nil
}

// checkToken reports a rejected access token as bad credentials rather than
// a provider outage.
func checkToken(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *httpclient.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusBadRequest) {
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidCredentials)
	}
	return err
}
