package service

import (
	"errors"
	"testing"
)

func TestValidatePasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "Valid#Pass123", wantErr: false},
		{name: "too_short", password: "Aa1#short", wantErr: true},
		{name: "missing_upper", password: "valid#pass1234", wantErr: true},
		{name: "missing_lower", password: "VALID#PASS1234", wantErr: true},
		{name: "missing_digit", password: "Valid#Password", wantErr: true},
		{name: "missing_special", password: "ValidPass1234", wantErr: true},
	}
	for _, tc := range tests {
		err := validatePassword(tc.password)
		if tc.wantErr && !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("%s: expected ErrWeakPassword, got %v", tc.name, err)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	for _, email := range []string{"", "bad-email", "Name <a@example.com>"} {
		var vErr *ValidationError
		if err := validateEmail(email); !errors.As(err, &vErr) || vErr.Field != "email" {
			t.Fatalf("%q: expected email validation error, got %v", email, err)
		}
	}
	if err := validateEmail("a@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCleanTextStripsMarkup(t *testing.T) {
	cases := map[string]string{
		"  Plain title ":                    "Plain title",
		"<b>Bold</b> & brave":               "Bold & brave",
		`<script>alert(1)</script>Safe`:     "Safe",
		`<a href="javascript:x()">link</a>`: "link",
	}
	for in, want := range cases {
		if got := cleanText(in); got != want {
			t.Fatalf("cleanText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateInputReportsJSONFieldNames(t *testing.T) {
	err := validateInput(WebsiteInput{Title: "x", URL: "https://example.com", CategoryID: 1})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "description" || vErr.Message != "is required" {
		t.Fatalf("unexpected validation error: %+v", vErr)
	}
}
