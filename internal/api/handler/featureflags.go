package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/api/response"
	"github.com/macroplan/macroplan/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag admin endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFlags handles GET /v1/admin/feature-flags. Output is sorted by key
// so repeated calls diff cleanly.
func (h *FeatureFlagsHandler) ListFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.service.GetAllFlags(r.Context())

	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(flags))}
	for _, flag := range flags {
		list.Items = append(list.Items, *flag)
	}
	sort.Slice(list.Items, func(i, j int) bool {
		return list.Items[i].Key < list.Items[j].Key
	})

	response.JSON(w, r, http.StatusOK, list)
}

// UpsertFlags handles PUT /v1/admin/feature-flags. Every accepted change
// is logged with the acting admin and the caller-supplied reason.
func (h *FeatureFlagsHandler) UpsertFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "updates must not be empty", nil)
		return
	}

	keys := make([]string, 0, len(req.Updates))
	flags := make([]*featureflags.Flag, 0, len(req.Updates))
	for _, update := range req.Updates {
		if update.Key == "" {
			response.BadRequest(w, r, "every update needs a key", nil)
			return
		}
		keys = append(keys, update.Key)
		flags = append(flags, &featureflags.Flag{
			Key:   update.Key,
			Value: update.Value,
		})
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		response.InternalError(w, r, "could not update feature flags")
		return
	}

	h.logger.Info().
		Strs("keys", keys).
		Str("reason", req.Reason).
		Str("actor", GetSubject(r.Context()).UserID).
		Msg("feature flags updated")

	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate. It drops
// the cached flags so the next read hits the repository.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
