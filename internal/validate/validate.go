package validate

import (
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"go-auth-gateway/pkg/apierror"
)

// Input validation for the auth endpoints. Every check is pure: no store
// access, no side effects. Violations accumulate across fields so the
// caller always receives the complete list in one pass.

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 50
	PasswordMinLen = 8
	emailMaxLen    = 254
)

// Sanitize trims surrounding whitespace and strips control characters.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Username checks format and length rules shared by login and
// registration.
func Username(username string) []apierror.FieldViolation {
	err := validation.Validate(username,
		validation.Required.Error("username is required"),
		validation.Length(UsernameMinLen, UsernameMaxLen).Error("username must be between 3 and 50 characters"),
		validation.Match(usernameRe).Error("username may only contain letters, digits, hyphens and underscores"),
	)
	if err != nil {
		return []apierror.FieldViolation{{Field: "username", Message: err.Error()}}
	}
	return nil
}

// Email checks an optional address. Empty is valid; registration treats
// email as opt-in.
func Email(email string) []apierror.FieldViolation {
	if email == "" {
		return nil
	}

	err := validation.Validate(email,
		validation.RuneLength(3, emailMaxLen).Error("email must be at most 254 characters"),
		is.Email.Error("email must be a valid address"),
	)
	if err != nil {
		return []apierror.FieldViolation{{Field: "email", Message: err.Error()}}
	}
	return nil
}

// LoginPassword only requires presence; strength is a registration-time
// concern and checking it at login would leak policy changes.
func LoginPassword(password string) []apierror.FieldViolation {
	if password == "" {
		return []apierror.FieldViolation{{Field: "password", Message: "password is required"}}
	}
	return nil
}

// RegisterPassword enforces the strict policy: minimum length plus the
// four character classes. Each missing class yields its own violation;
// checks never short-circuit.
func RegisterPassword(password string) []apierror.FieldViolation {
	var violations []apierror.FieldViolation

	if len(password) < PasswordMinLen {
		violations = append(violations, apierror.FieldViolation{
			Field: "password", Message: "password must be at least 8 characters",
		})
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		violations = append(violations, apierror.FieldViolation{
			Field: "password", Message: "password must contain an uppercase letter",
		})
	}
	if !hasLower {
		violations = append(violations, apierror.FieldViolation{
			Field: "password", Message: "password must contain a lowercase letter",
		})
	}
	if !hasDigit {
		violations = append(violations, apierror.FieldViolation{
			Field: "password", Message: "password must contain a digit",
		})
	}
	if !hasSymbol {
		violations = append(violations, apierror.FieldViolation{
			Field: "password", Message: "password must contain a symbol",
		})
	}

	return violations
}

// Login validates the sanitized login inputs.
func Login(username string, password string) []apierror.FieldViolation {
	var violations []apierror.FieldViolation
	violations = append(violations, Username(username)...)
	violations = append(violations, LoginPassword(password)...)
	return violations
}

// Register validates the sanitized registration inputs.
func Register(username string, password string, email string) []apierror.FieldViolation {
	var violations []apierror.FieldViolation
	violations = append(violations, Username(username)...)
	violations = append(violations, RegisterPassword(password)...)
	violations = append(violations, Email(email)...)
	return violations
}
