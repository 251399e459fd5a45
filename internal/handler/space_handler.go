package handler

import (
	"net/http"

	"go.uber.org/zap"

	"picturehub/internal/domain"
	"picturehub/internal/service"
)

type SpaceHandler struct {
	log    *zap.Logger
	auth   Authenticator
	spaces *service.SpaceService
}

func NewSpaceHandler(log *zap.Logger, auth Authenticator, spaces *service.SpaceService) *SpaceHandler {
	return &SpaceHandler{
		log:    log,
		auth:   auth,
		spaces: spaces,
	}
}

func (h *SpaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	var req domain.SpaceAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	space, err := h.spaces.Provision(r.Context(), user, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, space)
}

func (h *SpaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	space, err := h.spaces.Get(r.Context(), user, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, space)
}

func (h *SpaceHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	space, err := h.spaces.GetMine(r.Context(), user)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, space)
}

func (h *SpaceHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	var req domain.SpaceEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	space, err := h.spaces.Edit(r.Context(), user, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, space)
}

func (h *SpaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	var req domain.SpaceUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	space, err := h.spaces.UpdateByAdmin(r.Context(), user, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, space)
}

func (h *SpaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.spaces.Delete(r.Context(), user, id); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, true)
}

func (h *SpaceHandler) QuotaInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	info, err := h.spaces.QuotaInfo(r.Context(), user, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, info)
}

func (h *SpaceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	var q domain.SpaceQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, h.log, err)
		return
	}

	page, err := h.spaces.List(r.Context(), user, q)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, page)
}

func (h *SpaceHandler) Levels(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.spaces.ListLevels())
}
