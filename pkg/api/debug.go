package api

import "net/http"

// testSession handles GET /api/test-session, with or without a trailing
// slash. It is registered only outside production.
//
// @Summary      Dump session
// @Description  Development only. Returns the caller's full session record.
// @Tags         Debug
// @Produce      json
// @Success      200  {object}  session.Session
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /test-session [get]
func (h *Handler) testSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.storeContext(r)
	defer cancel()

	sess, err := h.deps.Sessions.Get(ctx, id)
	if err != nil {
		writeStoreError(w, "get session", err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
