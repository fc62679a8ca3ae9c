package shared_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/warden-admin/warden/internal/shared"
	_ "github.com/warden-admin/warden/testing"
)

func TestConflictErrorMatchesSentinel(t *testing.T) {
	err := shared.Conflict("email")
	if !errors.Is(err, shared.ErrConflict) {
		t.Fatalf("conflict error does not match sentinel")
	}
	if shared.ConflictField(err) != "email" {
		t.Fatalf("expected field email, got %q", shared.ConflictField(err))
	}

	wrapped := fmt.Errorf("create user: %w", err)
	if !errors.Is(wrapped, shared.ErrConflict) {
		t.Fatalf("wrapped conflict does not match sentinel")
	}
	if shared.ConflictField(wrapped) != "email" {
		t.Fatalf("field lost through wrapping")
	}
}

func TestUserSafeMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{shared.ErrNotFound, "The requested record was not found"},
		{shared.Conflict("email"), "The email is already taken"},
		{shared.ErrConflict, "A record with those details already exists"},
		{shared.ErrForbidden, "You are not allowed to perform this action"},
		{&shared.ValidationError{Fields: map[string]string{"name": "required"}}, "Some fields are invalid, please review them"},
		{errors.New("pq: connection reset"), "Something went wrong, please try again"},
	}
	for _, tc := range cases {
		if got := shared.UserSafeMessage(tc.err); got != tc.want {
			t.Fatalf("UserSafeMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
