package api

import (
	"net/http"
	"strconv"

	"github.com/txn2/slidetrack/pkg/session"
)

// progressResponse is returned by POST /api/progress.
type progressResponse struct {
	Module  string `json:"module" example:"auth"`
	Section int    `json:"section" example:"2"`
	Page    int    `json:"page" example:"3"`
}

// getProgress handles GET /api/progress/{module}.
//
// @Summary      Get module progress
// @Description  Returns the session's position in a module, or section 1 page 1 if never set.
// @Tags         Progress
// @Produce      json
// @Param        module  path  string  true  "Module identifier"
// @Success      200  {object}  session.Progress
// @Failure      400  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /progress/{module} [get]
func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	params := moduleParams{Module: r.PathValue("module")}
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

	p, err := h.deps.Sessions.GetProgress(ctx, id, params.Module)
	if err != nil {
		writeStoreError(w, "get progress", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// setProgress handles POST /api/progress/{module}/{section}/{page}.
//
// @Summary      Set module progress
// @Description  Overwrites the session's position in a module and echoes the stored values.
// @Tags         Progress
// @Produce      json
// @Param        module   path  string   true  "Module identifier"
// @Param        section  path  integer  true  "Section number, 1-based"
// @Param        page     path  integer  true  "Page number, 1-based"
// @Success      200  {object}  progressResponse
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /progress/{module}/{section}/{page} [post]
func (h *Handler) setProgress(w http.ResponseWriter, r *http.Request) {
	section, err := strconv.Atoi(r.PathValue("section"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid section: not an integer")
		return
	}
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page: not an integer")
		return
	}
	params := progressParams{Module: r.PathValue("module"), Section: section, Page: page}
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

	p := session.Progress{Section: params.Section, Page: params.Page}
	if err := h.deps.Sessions.SetProgress(ctx, id, params.Module, p); err != nil {
		writeStoreError(w, "set progress", err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Module:  params.Module,
		Section: p.Section,
		Page:    p.Page,
	})
}
