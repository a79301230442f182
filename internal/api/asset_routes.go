package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/micko4develop/crypto-dash/internal/detail"
)

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validateAssetID(id) {
		writeError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	v, err := s.detail.Load(r.Context(), id)
	switch {
	case errors.Is(err, detail.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded by a newer detail request")
	case err != nil:
		loggerFrom(r, s.log).Warn().Err(err).Str("id", id).Msg("detail load failed")
		writeJSON(w, loadFailureStatus(err), v)
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

// loggerFrom returns the request-scoped logger set by requestIDMiddleware,
// or fallback outside of it.
func loggerFrom(r *http.Request, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
