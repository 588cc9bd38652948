package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lifeops-dev/lifeops/internal/lifeops"
	"github.com/lifeops-dev/lifeops/internal/remote"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return false
	}
	return true
}

func isRemoteAuthError(err error) bool {
	return errors.Is(err, remote.ErrUnauthorized)
}

// respondError maps store errors onto the API's error vocabulary. An
// unauthorized remote response additionally tears down the signed-in state;
// a missing remote row is non-fatal and leaves local state alone.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, remote.ErrUnauthorized):
		s.auth.SignOut()
		writeError(w, http.StatusUnauthorized, "unauthorized", "remote authorization expired, signed out")
	case errors.Is(err, lifeops.ErrNotFound) || errors.Is(err, remote.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, lifeops.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		var statusErr *remote.StatusError
		if errors.As(err, &statusErr) {
			writeError(w, http.StatusBadGateway, "remote_error", statusErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
