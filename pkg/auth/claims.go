package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingUser         = errors.New("token subject user is required")
	ErrMissingOrganisation = errors.New("token organisation is required")
)

// AccessTokenPayload is what a caller supplies when minting a token. JTI is
// generated when blank.
type AccessTokenPayload struct {
	UserID         uuid.UUID
	OrganisationID uuid.UUID
	JTI            string
}

// AccessTokenClaims is the seller token body.
type AccessTokenClaims struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganisationID uuid.UUID `json:"organisation_id"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass, as jwt.ClaimsValidator.
func (c AccessTokenClaims) Validate() error {
	return requireIdentity(c.UserID, c.OrganisationID)
}

func requireIdentity(user, org uuid.UUID) error {
	switch {
	case user == uuid.Nil:
		return ErrMissingUser
	case org == uuid.Nil:
		return ErrMissingOrganisation
	}
	return nil
}
