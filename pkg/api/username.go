package api

import (
	"net/http"
)

// usernameSaved is the plain-text body of a successful POST /api/username.
const usernameSaved = "Successfully saved username!"

// usernameResponse is returned by GET /api/username. Username is null when
// the session never set one.
type usernameResponse struct {
	Username *string `json:"username" example:"ada"`
}

// setUsername handles POST /api/username/{username}.
//
// @Summary      Save display name
// @Description  Stores the display name on the session, replacing any previous one.
// @Tags         Username
// @Produce      plain
// @Param        username  path  string  true  "Display name, 1-64 printable characters"
// @Success      200  {string}  string  "Successfully saved username!"
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /username/{username} [post]
func (h *Handler) setUsername(w http.ResponseWriter, r *http.Request) {
	params := usernameParams{Username: r.PathValue("username")}
	if err := check(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.storeContext(r)
	defer cancel()

	if err := h.deps.Sessions.SetUsername(ctx, id, params.Username); err != nil {
		writeStoreError(w, "set username", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(usernameSaved))
}

// getUsername handles GET /api/username.
//
// @Summary      Get display name
// @Tags         Username
// @Produce      json
// @Success      200  {object}  usernameResponse
// @Failure      500  {object}  errorResponse
// @Router       /username [get]
func (h *Handler) getUsername(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.storeContext(r)
	defer cancel()

	name, set, err := h.deps.Sessions.Username(ctx, id)
	if err != nil {
		writeStoreError(w, "get username", err)
		return
	}
	resp := usernameResponse{}
	if set {
		resp.Username = &name
	}
	writeJSON(w, http.StatusOK, resp)
}
