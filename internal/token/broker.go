// Package token exchanges a long-lived OAuth2 refresh token for the
// short-lived access tokens the mailbox session authenticates with.
package token

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/deskhub/helpdesk/internal/domain"
)

// IMAPScope grants delegated IMAP access against Office 365.
const IMAPScope = "https://outlook.office365.com/IMAP.AccessAsUser.All"

// Broker acquires access tokens from the identity provider. Tokens are not
// cached across runs: each import run requests a fresh one and relies on
// the token's own server-side lifetime for reuse safety.
type Broker struct {
	conf         *oauth2.Config
	refreshToken string
}

// New builds a broker for the given tenant and client. tokenURL overrides
// the Microsoft identity-platform endpoint; pass "" for the default.
func New(tenantID, clientID, refreshToken, tokenURL string) *Broker {
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
	}
	return &Broker{
		conf: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{TokenURL: tokenURL},
			Scopes:   []string{IMAPScope},
		},
		refreshToken: refreshToken,
	}
}

// AccessToken performs the refresh-token grant and returns a token string
// usable immediately. Failure is fatal for the calling run: it wraps
// domain.ErrAuth and carries the provider's error description.
func (b *Broker) AccessToken(ctx context.Context) (string, error) {
	src := b.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: b.refreshToken})
	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return "", fmt.Errorf("%w: token endpoint returned %s: %s", domain.ErrAuth, rerr.Response.Status, rerr.Body)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token endpoint returned an empty access token", domain.ErrAuth)
	}
	return tok.AccessToken, nil
}
