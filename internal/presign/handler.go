package presign

import (
	"net/http"

	"github.com/uploadbroker/service/internal/response"
)

// Handler holds HTTP handlers for presign endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new presign Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type putRequest struct {
	Key           string `json:"key"           example:"uploads/a.pdf"`
	ContentType   string `json:"contentType"   example:"application/pdf"`
	ContentLength int64  `json:"contentLength" example:"48213"`
	ExpiresIn     int    `json:"expiresIn"     example:"300"`
}

type getRequest struct {
	Key       string `json:"key"       example:"uploads/a.pdf"`
	ExpiresIn int    `json:"expiresIn" example:"300"`
}

// PresignPut godoc
//
//	@Summary		Presign upload
//	@Description	Returns a URL valid for a single PUT of the given key and content type.
//	@Tags			presign
//	@Accept			json
//	@Produce		json
//	@Param			request	body		putRequest	true	"Object to upload"
//	@Success		200		{object}	PutResult
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		429		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/s3/presign-put [post]
func (h *Handler) PresignPut(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	res, err := h.svc.PresignPut(r.Context(), PutInput{
		Key:           req.Key,
		ContentType:   req.ContentType,
		ContentLength: req.ContentLength,
		ExpiresIn:     req.ExpiresIn,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.OK(w, res)
}

// PresignGet godoc
//
//	@Summary		Presign download
//	@Description	Returns a GET URL when the object's virus scan verdict is clean. Responds 202 while the scan is pending and 403 when the object is infected.
//	@Tags			presign
//	@Accept			json
//	@Produce		json
//	@Param			request	body		getRequest	true	"Object to download"
//	@Success		200		{object}	GetResult
//	@Success		202		{object}	response.ErrorBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		403		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		429		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/s3/presign-get [post]
func (h *Handler) PresignGet(w http.ResponseWriter, r *http.Request) {
	var req getRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	res, err := h.svc.PresignGet(r.Context(), GetInput{Key: req.Key, ExpiresIn: req.ExpiresIn})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.OK(w, res)
}
