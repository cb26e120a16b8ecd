package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alva-alumni/apiserver/internal/apperr"
	"github.com/alva-alumni/apiserver/internal/auth"
	"github.com/rs/zerolog"
)

const maxJSONBody = 1 << 20

var errInvalidBody = apperr.Validation("Invalid request body")

type contextKey string

const contextClaimsKey contextKey = "claims"

// ClaimsFromContext returns the session claims attached by RequireAuth.
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(contextClaimsKey).(auth.Claims)
	return claims, ok && claims.ID != ""
}

// ErrorResponse is the body of every failed request. Stack is only populated
// outside production.
type ErrorResponse struct {
	Error string `json:"error"`
	Stack string `json:"stack,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// respondError writes err as a client response. Errors that are not
// *apperr.Error become a generic 500 and are logged in full.
func respondError(w http.ResponseWriter, r *http.Request, err error, exposeStack bool) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal(err)
	}

	log := zerolog.Ctx(r.Context())
	if appErr.Status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else if appErr.Err != nil {
		log.Debug().Err(err).Int("status", appErr.Status).Msg("request rejected")
	}

	resp := ErrorResponse{Error: appErr.Message}
	if exposeStack {
		resp.Stack = err.Error()
	}
	writeJSON(w, appErr.Status, resp)
}

// decodeJSON reads a single JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return errInvalidBody.Wrap(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}
