package middleware

import (
	"context"
	"testing"
)

func TestPrincipalSettersKeepOtherField(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-1")
	ctx = WithOrganisationID(ctx, "org-1")

	got := PrincipalFromContext(ctx)
	if got.UserID != "user-1" || got.OrganisationID != "org-1" {
		t.Fatalf("unexpected principal %+v", got)
	}
	if UserIDFromContext(context.Background()) != "" {
		t.Fatal("expected empty user for anonymous context")
	}
}
