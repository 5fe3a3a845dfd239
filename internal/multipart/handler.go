package multipart

import (
	"net/http"

	"github.com/uploadbroker/service/internal/response"
)

// Handler holds HTTP handlers for the multipart endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new multipart Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	Key         string `json:"key"         example:"videos/talk.mp4"`
	ContentType string `json:"contentType" example:"video/mp4"`
}

type signRequest struct {
	Key        string `json:"key"        example:"videos/talk.mp4"`
	UploadID   string `json:"uploadId"   example:"2~abc"`
	PartNumber int    `json:"partNumber" example:"1"`
}

type completeRequest struct {
	Key      string `json:"key"      example:"videos/talk.mp4"`
	UploadID string `json:"uploadId" example:"2~abc"`
	Parts    []Part `json:"parts"`
}

type abortRequest struct {
	Key      string `json:"key"      example:"videos/talk.mp4"`
	UploadID string `json:"uploadId" example:"2~abc"`
}

// Create godoc
//
//	@Summary	Start multipart upload
//	@Tags		multipart
//	@Accept		json
//	@Produce	json
//	@Param		request	body		createRequest	true	"Object to upload"
//	@Success	200		{object}	CreateResult
//	@Failure	400		{object}	response.ErrorBody
//	@Failure	429		{object}	response.ErrorBody
//	@Failure	500		{object}	response.ErrorBody
//	@Router		/s3/create [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	res, err := h.svc.Create(r.Context(), req.Key, req.ContentType)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.OK(w, res)
}

// SignPart godoc
//
//	@Summary	Presign one part
//	@Tags		multipart
//	@Accept		json
//	@Produce	json
//	@Param		request	body		signRequest	true	"Part to upload"
//	@Success	200		{object}	SignResult
//	@Failure	400		{object}	response.ErrorBody
//	@Failure	429		{object}	response.ErrorBody
//	@Router		/s3/sign [post]
func (h *Handler) SignPart(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	res, err := h.svc.SignPart(r.Context(), req.Key, req.UploadID, req.PartNumber)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.OK(w, res)
}

// Complete godoc
//
//	@Summary		Complete multipart upload
//	@Description	Assembles the listed parts into the final object. Retrying a completed upload succeeds.
//	@Tags			multipart
//	@Accept			json
//	@Produce		json
//	@Param			request	body		completeRequest	true	"Upload and its parts"
//	@Success		200		{object}	CompleteResult
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		429		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/s3/complete [post]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	res, err := h.svc.Complete(r.Context(), req.Key, req.UploadID, req.Parts)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.OK(w, res)
}

// Abort godoc
//
//	@Summary	Abort multipart upload
//	@Tags		multipart
//	@Accept		json
//	@Produce	json
//	@Param		request	body		abortRequest	true	"Upload to abort"
//	@Success	200		{object}	AbortResult
//	@Failure	400		{object}	response.ErrorBody
//	@Failure	500		{object}	response.ErrorBody
//	@Router		/s3/abort [post]
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	var req abortRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	res, err := h.svc.Abort(r.Context(), req.Key, req.UploadID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.OK(w, res)
}
