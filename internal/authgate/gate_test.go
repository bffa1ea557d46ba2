package authgate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateCheck(t *testing.T) {
	t.Parallel()

	gate := New(" Guest@Example.com , advisor@outside.org ", "@school.edu")
	ctx := context.Background()

	tests := []struct {
		name  string
		email string
		allow bool
	}{
		{"institutional email", "student@school.edu", true},
		{"institutional email uppercased", "STUDENT@SCHOOL.EDU", true},
		{"institutional email with whitespace", "  student@school.edu ", true},
		{"allow-listed outside domain", "guest@example.com", true},
		{"allow-list is case-insensitive", "ADVISOR@outside.org", true},
		{"outside domain not listed", "stranger@gmail.com", false},
		{"empty email", "", false},
		{"domain as substring only", "student@school.edu.evil.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errCreate := gate.BeforeCreate(ctx, tt.email)
			errSignIn := gate.BeforeSignIn(ctx, tt.email)
			if tt.allow {
				require.NoError(t, errCreate)
				require.NoError(t, errSignIn)
			} else {
				require.Error(t, errCreate)
				require.Error(t, errSignIn)
				var denied *ErrEmailNotAllowed
				require.ErrorAs(t, errCreate, &denied)
				require.Contains(t, denied.Error(), "@school.edu")
			}
		})
	}
}

func TestGateAllowListPrecedesDomain(t *testing.T) {
	t.Parallel()

	// An allow-listed email is accepted even though it does not match the
	// institutional suffix.
	gate := New("board@funders.org", "@school.edu")
	require.NoError(t, gate.BeforeSignIn(context.Background(), "board@funders.org"))
}
