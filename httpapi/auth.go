package httpapi

import (
	"context"

	"github.com/biaslens/evalcore/apperr"
)

// ProfileLookup resolves an API token to its owning profile. The profile
// and team tables themselves belong to the surrounding platform; the core
// only reads the two identifiers.
type ProfileLookup interface {
	ProfileByToken(ctx context.Context, token string) (userID, teamID string, err error)
}

// ProfileAuthenticator authenticates bearer tokens against the platform's
// profile table. Callers without a team are rejected: every evaluation is
// team-owned.
type ProfileAuthenticator struct {
	lookup ProfileLookup
}

// NewProfileAuthenticator builds the authenticator.
func NewProfileAuthenticator(lookup ProfileLookup) *ProfileAuthenticator {
	return &ProfileAuthenticator{lookup: lookup}
}

// Authenticate implements Authenticator.
func (a *ProfileAuthenticator) Authenticate(ctx context.Context, bearerToken string) (*Identity, error) {
	userID, teamID, err := a.lookup.ProfileByToken(ctx, bearerToken)
	if err != nil {
		return nil, apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "invalid bearer token").WithCause(err)
	}
	if teamID == "" {
		return nil, apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "caller profile has no team")
	}
	return &Identity{UserID: userID, TeamID: teamID}, nil
}
