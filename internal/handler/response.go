package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go-auth-gateway/internal/model"
	"go-auth-gateway/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps the tagged error kinds onto HTTP statuses and the
// uniform envelope. Validation errors expose field detail; authentication
// errors never do. Anything unclassified is logged and masked.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "unexpected server error",
	}

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case apierror.KindValidation:
			status = http.StatusBadRequest
			body.Code = "VALIDATION_ERROR"
			body.Message = apiErr.Message
			body.Fields = apiErr.Violations
		case apierror.KindAuthentication:
			status = http.StatusUnauthorized
			body.Code = "UNAUTHORIZED"
			body.Message = apiErr.Message
		case apierror.KindRateLimit:
			status = http.StatusTooManyRequests
			body.Code = "RATE_LIMITED"
			body.Message = apiErr.Message
			if !apiErr.ResetAt.IsZero() {
				retryAfter := int(time.Until(apiErr.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			}
		default:
			slog.Error("internal error", "error", apiErr.Error(), "cause", apiErr.Unwrap())
		}
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
