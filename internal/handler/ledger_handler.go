package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-ingest/internal/service"
	"ledger-ingest/pkg/response"
)

type LedgerHandler struct {
	service      service.LedgerQueryService
	historyLimit int
}

func NewLedgerHandler(service service.LedgerQueryService, historyLimit int) *LedgerHandler {
	return &LedgerHandler{service: service, historyLimit: historyLimit}
}

// customerID writes a 404 and returns false for ids that cannot exist.
func customerID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !validID(id) {
		response.NotFound(c, "customer not found")
		return "", false
	}
	return id, true
}

// GetLedger godoc
// @Summary Customer ledger entries
// @Description Newest first, at most 500 rows
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} response.Response{data=[]domain.LedgerEntry}
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{id}/ledger [get]
func (h *LedgerHandler) GetLedger(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	entries, err := h.service.Ledger(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, "Ledger retrieved successfully", entries)
}

// GetBills godoc
// @Summary Customer bills
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} response.Response{data=[]domain.Bill}
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{id}/bills [get]
func (h *LedgerHandler) GetBills(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	bills, err := h.service.Bills(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, "Bills retrieved successfully", bills)
}

// GetPayments godoc
// @Summary Customer payments
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} response.Response{data=[]domain.Payment}
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{id}/payments [get]
func (h *LedgerHandler) GetPayments(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	payments, err := h.service.Payments(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, "Payments retrieved successfully", payments)
}

// GetInvoices godoc
// @Summary Customer invoices with items
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} response.Response{data=[]domain.Invoice}
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{id}/invoices [get]
func (h *LedgerHandler) GetInvoices(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	invoices, err := h.service.Invoices(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, "Invoices retrieved successfully", invoices)
}

// GetSummary godoc
// @Summary Customer totals
// @Description Purchases (bills and invoices), payments and the outstanding balance
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} response.Response{data=domain.CustomerSummary}
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{id}/summary [get]
func (h *LedgerHandler) GetSummary(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, "Summary retrieved successfully", summary)
}

// GetImportLogs godoc
// @Summary Recent markup import audit rows
// @Tags imports
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Response{data=[]domain.ImportLog}
// @Router /api/v1/imports/logs [get]
func (h *LedgerHandler) GetImportLogs(c *gin.Context) {
	logs, err := h.service.ImportLogs(c.Request.Context(), limitParam(c, h.historyLimit, MaxHistory))
	if err != nil {
		response.FromError(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, "Import logs retrieved successfully", logs)
}
