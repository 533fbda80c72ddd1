package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the import and customer APIs on an /api/v1 group.
func RegisterRoutes(v1 *gin.RouterGroup, imports *ImportHandler, ledger *LedgerHandler) {
	importRoutes := v1.Group("/imports")
	{
		importRoutes.POST("/markup", imports.UploadMarkup)
		importRoutes.POST("/upload", imports.UploadSheet)
		importRoutes.POST("/sync/:id", imports.SyncImport)
		importRoutes.GET("/status/:id", imports.GetImportStatus)
		importRoutes.GET("/history", imports.GetImportHistory)
		importRoutes.GET("/logs", ledger.GetImportLogs)
	}

	customers := v1.Group("/customers/:id")
	{
		customers.GET("/ledger", ledger.GetLedger)
		customers.GET("/bills", ledger.GetBills)
		customers.GET("/payments", ledger.GetPayments)
		customers.GET("/invoices", ledger.GetInvoices)
		customers.GET("/summary", ledger.GetSummary)
	}
}
