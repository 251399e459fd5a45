package handler

import (
	"net/http"

	"go.uber.org/zap"

	"picturehub/internal/apperr"
	"picturehub/internal/domain"
	"picturehub/internal/service"
	"picturehub/internal/upload"
)

// maxMultipartMemory bounds the in-memory part of a parsed upload form.
const maxMultipartMemory = 4 << 20

type PictureHandler struct {
	log      *zap.Logger
	auth     Authenticator
	pictures *service.PictureService
}

func NewPictureHandler(log *zap.Logger, auth Authenticator, pictures *service.PictureService) *PictureHandler {
	return &PictureHandler{
		log:      log,
		auth:     auth,
		pictures: pictures,
	}
}

// Upload accepts a multipart form with a "file" part and optional id,
// spaceId and picName fields.
func (h *PictureHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, h.log, apperr.InvalidInput("failed to parse form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var req domain.UploadRequest
	var err error
	if req.ID, err = optionalInt64(r.FormValue("id")); err != nil {
		writeError(w, h.log, apperr.InvalidInput("invalid picture id"))
		return
	}
	if req.SpaceID, err = optionalInt64(r.FormValue("spaceId")); err != nil {
		writeError(w, h.log, apperr.InvalidInput("invalid space id"))
		return
	}
	req.PicName = r.FormValue("picName")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.log, apperr.InvalidInput("file is required"))
		return
	}
	defer file.Close()

	input := &upload.FileInput{Filename: header.Filename, Size: header.Size, Reader: file}
	pic, err := h.pictures.Upload(r.Context(), user, input, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, pic)
}

func (h *PictureHandler) UploadByURL(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	var req domain.UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	pic, err := h.pictures.Upload(r.Context(), user, req.FileURL, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, pic)
}

func (h *PictureHandler) UploadByBatch(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	var req domain.BatchUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	n, err := h.pictures.UploadByBatch(r.Context(), user, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, map[string]int{"count": n})
}

func (h *PictureHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := optionalUser(w, r, h.auth)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	pic, err := h.pictures.Get(r.Context(), user, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, pic)
}

func (h *PictureHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	var req domain.PictureEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	pic, err := h.pictures.Edit(r.Context(), user, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, pic)
}

func (h *PictureHandler) Review(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}

	var req domain.PictureReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.pictures.Review(r.Context(), user, req); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, true)
}

func (h *PictureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.pictures.Delete(r.Context(), user, id); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, true)
}

// List takes the query as a JSON body so filters like tags stay structured.
func (h *PictureHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := optionalUser(w, r, h.auth)
	if !ok {
		return
	}

	var q domain.PictureQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, h.log, err)
		return
	}

	page, err := h.pictures.List(r.Context(), user, q)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, page)
}

func (h *PictureHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.auth)
	if !ok {
		return
	}
	if err := h.pictures.RefreshListCache(r.Context(), user); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeOK(w, true)
}
