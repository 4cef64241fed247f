package model

import "go-auth-gateway/pkg/apierror"

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Fields  []apierror.FieldViolation `json:"fields,omitempty"`
}

// AuthResult is the payload returned by successful login and registration.
type AuthResult struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

type LogoutResponse struct {
	LoggedOut bool `json:"logged_out"`
}
