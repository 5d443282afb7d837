package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/sellerhub-backend/api/middleware"
	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (catalog.Actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return catalog.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	orgID := middleware.OrganisationIDFromContext(r.Context())
	if orgID == "" {
		return catalog.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "organisation context missing")
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return catalog.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	oid, err := uuid.Parse(orgID)
	if err != nil {
		return catalog.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid organisation id")
	}
	return catalog.Actor{UserID: uid, OrganisationID: oid}, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
