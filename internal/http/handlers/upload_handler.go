// Upload, predefined message and report handlers.
//
//   - POST   /uploads                   (multipart "file")
//   - GET    /uploads/{id}
//   - GET    /predefined, POST /predefined
//   - GET|PUT|DELETE /predefined/{id}
//   - POST   /messages/{id}/report
//   - GET    /rooms/{id}/reports
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/services"
)

// PredefinedRequest is the content of a canned message.
type PredefinedRequest struct {
	Text string  `json:"text" example:"Thanks, we are on it."`
	File *string `json:"file"`
}

// PredefinedListResponse lists the caller's canned messages.
type PredefinedListResponse struct {
	Items []domain.PredefinedMessage `json:"items"`
}

// ReportRequest carries the reason of a report.
type ReportRequest struct {
	Reason string `json:"reason" example:"spam"`
}

// ReportsResponse lists the reports of a room.
type ReportsResponse struct {
	Reports []domain.Report `json:"reports"`
}

// UploadFile godoc
// @ID          uploadFile
// @Summary     Upload a file
// @Description Stores the file and, for images and videos, schedules a thumbnail.
// @Tags        Uploads
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file  formData  file  true  "File"
// @Success     201  {object} domain.FileUpload
// @Failure     400  {object} handlers.ErrorResponse
// @Router      /uploads [post]
func (h *Handlers) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			failErr(c, services.ErrUploadTooLarge)
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	defer f.Close()

	up, err := h.Uploads.Upload(c.Request.Context(), principal(c), fh.Filename, fh.Size, f)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, up)
}

// GetUpload godoc
// @ID          getUpload
// @Summary     Upload metadata
// @Tags        Uploads
// @Produce     json
// @Security    BearerAuth
// @Param       upload_id  path  string  true  "Upload ID"
// @Success     200  {object} domain.FileUpload
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /uploads/{upload_id} [get]
func (h *Handlers) GetUpload(c *gin.Context) {
	up, err := h.Uploads.Get(c.Request.Context(), principal(c), c.Param("upload_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, up)
}

// ListPredefined godoc
// @ID          listPredefined
// @Summary     List my predefined messages
// @Tags        Predefined
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.PredefinedListResponse
// @Router      /predefined [get]
func (h *Handlers) ListPredefined(c *gin.Context) {
	items, err := h.Predefined.List(c.Request.Context(), principal(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.PredefinedMessage{}
	}
	ok(c, http.StatusOK, PredefinedListResponse{Items: items})
}

// CreatePredefined godoc
// @ID          createPredefined
// @Summary     Create a predefined message
// @Tags        Predefined
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.PredefinedRequest  true  "Content"
// @Success     201  {object} domain.PredefinedMessage
// @Failure     400  {object} handlers.ErrorResponse
// @Router      /predefined [post]
func (h *Handlers) CreatePredefined(c *gin.Context) {
	var req PredefinedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.Predefined.Create(c.Request.Context(), principal(c), services.PredefinedInput{
		Text:   sanitizeContent(req.Text),
		FileID: req.File,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// GetPredefined godoc
// @ID          getPredefined
// @Summary     Get a predefined message
// @Tags        Predefined
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Predefined message ID"
// @Success     200  {object} domain.PredefinedMessage
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /predefined/{id} [get]
func (h *Handlers) GetPredefined(c *gin.Context) {
	p, err := h.Predefined.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePredefined godoc
// @ID          updatePredefined
// @Summary     Replace a predefined message
// @Tags        Predefined
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                      true  "Predefined message ID"
// @Param       body  body  handlers.PredefinedRequest  true  "Content"
// @Success     200  {object} domain.PredefinedMessage
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /predefined/{id} [put]
func (h *Handlers) UpdatePredefined(c *gin.Context) {
	var req PredefinedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.Predefined.Update(c.Request.Context(), principal(c), c.Param("id"), services.PredefinedInput{
		Text:   sanitizeContent(req.Text),
		FileID: req.File,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePredefined godoc
// @ID          deletePredefined
// @Summary     Delete a predefined message
// @Tags        Predefined
// @Security    BearerAuth
// @Param       id  path  string  true  "Predefined message ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /predefined/{id} [delete]
func (h *Handlers) DeletePredefined(c *gin.Context) {
	if err := h.Predefined.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ReportMessage godoc
// @ID          reportMessage
// @Summary     Report a group message
// @Tags        Reports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       message_id  path  string                  true   "Message ID"
// @Param       body        body  handlers.ReportRequest  false  "Reason"
// @Success     201  {object} domain.Report
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /messages/{message_id}/report [post]
func (h *Handlers) ReportMessage(c *gin.Context) {
	var req ReportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	r, err := h.Reports.Report(c.Request.Context(), principal(c), c.Param("message_id"), strings.TrimSpace(req.Reason))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// ListReports godoc
// @ID          listReports
// @Summary     Reports filed in a group
// @Tags        Reports
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.ReportsResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/reports [get]
func (h *Handlers) ListReports(c *gin.Context) {
	reports, err := h.Reports.List(c.Request.Context(), principal(c), c.Param("room_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	ok(c, http.StatusOK, ReportsResponse{Reports: reports})
}
