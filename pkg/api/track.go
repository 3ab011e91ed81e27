package api

import (
	"net/http"

	"github.com/txn2/slidetrack/pkg/tally"
)

// track handles POST /api/track/{resource}/{behavior}.
//
// @Summary      Track a response
// @Description  Records the session's first behavior for a resource and returns the resource's counts by behavior. Repeat submissions from the same session are not counted.
// @Tags         Tracking
// @Produce      json
// @Param        resource  path  string  true  "Resource identifier"
// @Param        behavior  path  string  true  "Behavior label"
// @Success      200  {object}  map[string]int64
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /track/{resource}/{behavior} [post]
func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	params := trackParams{
		Resource: r.PathValue("resource"),
		Behavior: r.PathValue("behavior"),
	}
	if err := check(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	result, err := h.deps.Tracker.Track(r.Context(), id, params.Resource, params.Behavior)
	if err != nil {
		writeStoreError(w, "track", err)
		return
	}
	if result == nil {
		result = tally.Tally{}
	}
	writeJSON(w, http.StatusOK, result)
}
