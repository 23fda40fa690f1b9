package utils

import (
	"strings"
	"testing"
)

type validateTestPayload struct {
	FullName string `validate:"required,min=2,max=10"`
	Email    string `validate:"required,email"`
	UserID   string `validate:"omitempty,uuid"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("passes for valid payload", func(t *testing.T) {
		payload := validateTestPayload{
			FullName: "Alice",
			Email:    "alice@example.com",
			UserID:   "3c2b9a60-68e3-4d08-93a4-8c6f7d3a2e91",
		}
		if err := ValidateStruct(payload); err != nil {
			t.Fatalf("expected valid payload to pass, got %v", err)
		}
	})

	t.Run("reports missing required fields", func(t *testing.T) {
		err := ValidateStruct(validateTestPayload{})
		if err == nil {
			t.Fatal("expected validation error for empty payload")
		}
		if !strings.Contains(err.Error(), "fullName is required") {
			t.Fatalf("expected fullName requirement in message, got %q", err.Error())
		}
		if !strings.Contains(err.Error(), "email is required") {
			t.Fatalf("expected email requirement in message, got %q", err.Error())
		}
	})

	t.Run("reports invalid email", func(t *testing.T) {
		err := ValidateStruct(validateTestPayload{FullName: "Alice", Email: "nope"})
		if err == nil || !strings.Contains(err.Error(), "email must be a valid email") {
			t.Fatalf("expected email format error, got %v", err)
		}
	})

	t.Run("reports invalid uuid", func(t *testing.T) {
		err := ValidateStruct(validateTestPayload{
			FullName: "Alice",
			Email:    "alice@example.com",
			UserID:   "not-a-uuid",
		})
		if err == nil || !strings.Contains(err.Error(), "userID must be a valid uuid") {
			t.Fatalf("expected uuid error, got %v", err)
		}
	})

	t.Run("reports length bounds", func(t *testing.T) {
		err := ValidateStruct(validateTestPayload{FullName: "A", Email: "alice@example.com"})
		if err == nil || !strings.Contains(err.Error(), "fullName must be at least 2 characters") {
			t.Fatalf("expected min length error, got %v", err)
		}
	})
}
