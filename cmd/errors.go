package cmd

import (
	"errors"
	"io"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/internal/shelfclient"
)

// errorPayload maps a command error to its code, message and field issues.
func errorPayload(err error) output.ErrorPayload {
	var (
		ve     *shelfclient.ValidationError
		fe     models.FieldErrors
		apiErr *shelfclient.APIError
	)
	switch {
	case errors.As(err, &ve):
		msg := ve.Message
		if msg == "" {
			msg = "invalid input"
		}
		return output.ErrorPayload{Code: "validation", Message: msg, Issues: ve.Issues}
	case errors.As(err, &fe):
		return output.ErrorPayload{Code: "validation", Message: "invalid input", Issues: fe}
	case errors.Is(err, errNotSignedIn):
		return output.ErrorPayload{Code: "unauthorized", Message: err.Error()}
	case errors.Is(err, shelfclient.ErrUnauthorized):
		return output.ErrorPayload{Code: "unauthorized", Message: "session expired or revoked (run shelf sign-in)"}
	case errors.Is(err, shelfclient.ErrForbidden):
		return output.ErrorPayload{Code: "forbidden", Message: err.Error()}
	case errors.Is(err, shelfclient.ErrNotFound):
		return output.ErrorPayload{Code: "not_found", Message: err.Error()}
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return output.ErrorPayload{Code: apiErr.Code, Message: msg}
	default:
		return output.ErrorPayload{Code: "error", Message: err.Error()}
	}
}

// reportError renders err in the selected output format.
func reportError(w io.Writer, err error) {
	_ = output.RenderError(w, outputFormat, errorPayload(err))
}
