package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/parser"
	"ledger-ingest/internal/service"
	"ledger-ingest/pkg/logger"
	"ledger-ingest/pkg/response"
)

// MaxHistory caps ?limit on history endpoints.
const MaxHistory = 100

type ImportHandler struct {
	markup       service.MarkupImportService
	staging      service.StagingService
	historyLimit int
}

func NewImportHandler(markup service.MarkupImportService, staging service.StagingService, historyLimit int) *ImportHandler {
	return &ImportHandler{
		markup:       markup,
		staging:      staging,
		historyLimit: historyLimit,
	}
}

type UploadSheetRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`
	Type string                `form:"type" binding:"required,oneof=customers products invoices"`
}

type UploadMarkupRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`
}

// UploadMarkup godoc
// @Summary Import an accounting XML export
// @Description Parses a master or voucher XML export and reconciles it into the ledger. Only one markup import runs at a time.
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "XML export"
// @Success 200 {object} response.Response{data=domain.MarkupResult}
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/imports/markup [post]
func (h *ImportHandler) UploadMarkup(c *gin.Context) {
	var req UploadMarkupRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "No file uploaded", bindingDetails(err))
		return
	}
	if extension(req.File.Filename) != parser.ExtXML {
		response.BadRequest(c, "Unsupported file type", "markup imports accept .xml files")
		return
	}

	file, err := req.File.Open()
	if err != nil {
		response.BadRequest(c, "Failed to read uploaded file", err.Error())
		return
	}
	defer file.Close()

	result, err := h.markup.Import(c.Request.Context(), file)
	if err != nil {
		logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
			"file":       req.File.Filename,
			"session_id": result.SessionID,
		}).Warn("Markup import failed")
		response.FromError(c, err, gin.H{"sessionId": result.SessionID})
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}

// UploadSheet godoc
// @Summary Stage a spreadsheet export
// @Description Stores the rows of the first sheet for a later sync. Nothing is written to the ledger yet.
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet (.xls or .xlsx)"
// @Param type formData string true "Import type" Enums(customers, products, invoices)
// @Success 200 {object} response.Response{data=domain.StageResult}
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/imports/upload [post]
func (h *ImportHandler) UploadSheet(c *gin.Context) {
	var req UploadSheetRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ValidationError(c, bindingDetails(err))
		return
	}
	if !parser.AllowedExtension(req.File.Filename) || extension(req.File.Filename) == parser.ExtXML {
		response.BadRequest(c, "Unsupported file type", "spreadsheet imports accept .xls and .xlsx files")
		return
	}

	file, err := req.File.Open()
	if err != nil {
		response.BadRequest(c, "Failed to read uploaded file", err.Error())
		return
	}
	defer file.Close()

	result, err := h.staging.Stage(c.Request.Context(), req.File.Filename, domain.ImportType(req.Type), file)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("file", req.File.Filename).Warn("Staging failed")
		response.FromError(c, err, nil)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}

// SyncImport godoc
// @Summary Sync a staged import
// @Description Validates the staged rows and commits them in one transaction. Syncing a processed import is a no-op.
// @Tags imports
// @Produce json
// @Param id path string true "Import ID"
// @Success 200 {object} response.Response{data=domain.SyncResult}
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/imports/sync/{id} [post]
func (h *ImportHandler) SyncImport(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		response.NotFound(c, "Import record not found")
		return
	}

	result, err := h.staging.Sync(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, nil)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}

// GetImportStatus godoc
// @Summary Get a staged import
// @Tags imports
// @Produce json
// @Param id path string true "Import ID"
// @Success 200 {object} response.Response{data=domain.StagingImport}
// @Failure 404 {object} response.Response
// @Router /api/v1/imports/status/{id} [get]
func (h *ImportHandler) GetImportStatus(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		response.NotFound(c, "Import record not found")
		return
	}

	record, err := h.staging.Status(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, nil)
		return
	}

	response.Success(c, http.StatusOK, "Import retrieved successfully", record)
}

// GetImportHistory godoc
// @Summary List recent staged imports
// @Tags imports
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Response{data=[]domain.StagingImport}
// @Failure 500 {object} response.Response
// @Router /api/v1/imports/history [get]
func (h *ImportHandler) GetImportHistory(c *gin.Context) {
	records, err := h.staging.History(c.Request.Context(), limitParam(c, h.historyLimit, MaxHistory))
	if err != nil {
		response.FromError(c, err, nil)
		return
	}

	response.Success(c, http.StatusOK, "Import history retrieved successfully", records)
}
