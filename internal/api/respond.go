package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Veraticus/spiceflow/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind common.Kind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	status := statusFor(kind)

	logger := loggerFrom(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", r.URL.Path, "kind", kind, "error", err)
	} else {
		logger.Warn("Request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst
// untouched when optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return common.NewValidationError("body", "must be valid JSON")
	}
	return nil
}
