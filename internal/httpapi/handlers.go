package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/MarkoPoloResearchLab/bottlebook/pkg/bottlebook"
	"github.com/MarkoPoloResearchLab/bottlebook/pkg/cloudsync"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	deps Dependencies
}

type balancesResponse struct {
	BottlesOutstanding int    `json:"bottlesOutstanding"`
	DepositsHeldCents  int64  `json:"depositsHeldCents"`
	LastTransaction    *int64 `json:"lastTransaction,omitempty"`
}

type inventoryLineResponse struct {
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	Size        string `json:"size"`
	BottleCount int    `json:"bottleCount"`
}

type trustRequest struct {
	TrustStatus string `json:"trustStatus"`
}

type syncStatusResponse struct {
	Status          string `json:"status"`
	LastSyncUnixUTC int64  `json:"lastSyncAt,omitempty"`
	PendingChanges  int    `json:"pendingChanges"`
}

type syncReportResponse struct {
	Outcome   string `json:"outcome"`
	Applied   int    `json:"applied"`
	Failed    int    `json:"failed"`
	Remaining int    `json:"remaining"`
}

func (handler *httpHandler) handleListCustomers(ginCtx *gin.Context) {
	customers, err := handler.deps.Service.Customers(ginCtx.Request.Context())
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	documents := make([]bottlebook.CustomerDocument, 0, len(customers))
	for _, customer := range customers {
		documents = append(documents, bottlebook.EncodeCustomer(customer))
	}
	ginCtx.JSON(http.StatusOK, documents)
}

func (handler *httpHandler) handleAddCustomer(ginCtx *gin.Context) {
	var document bottlebook.CustomerDocument
	if err := ginCtx.ShouldBindJSON(&document); err != nil {
		ginCtx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	customer, err := bottlebook.DecodeCustomer(document)
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	customer.LastSyncedUnixUTC = nil
	if err := handler.deps.Service.AddCustomer(ginCtx.Request.Context(), customer); err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, bottlebook.EncodeCustomer(customer))
}

func (handler *httpHandler) handleDeleteCustomer(ginCtx *gin.Context) {
	customerID, err := bottlebook.NewCustomerID(ginCtx.Param("id"))
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	if err := handler.deps.Service.DeleteCustomer(ginCtx.Request.Context(), customerID); err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleUpdateTrust(ginCtx *gin.Context) {
	customerID, err := bottlebook.NewCustomerID(ginCtx.Param("id"))
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	var request trustRequest
	if err := ginCtx.ShouldBindJSON(&request); err != nil {
		ginCtx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	status, err := bottlebook.ParseTrustStatus(request.TrustStatus)
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	if err := handler.deps.Service.UpdateCustomerTrustStatus(ginCtx.Request.Context(), customerID, status); err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleCustomerTransactions(ginCtx *gin.Context) {
	customerID, err := bottlebook.NewCustomerID(ginCtx.Param("id"))
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	transactions, err := handler.deps.Service.CustomerTransactions(ginCtx.Request.Context(), customerID)
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, encodeTransactions(transactions))
}

func (handler *httpHandler) handleCustomerBalances(ginCtx *gin.Context) {
	customerID, err := bottlebook.NewCustomerID(ginCtx.Param("id"))
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	balances, err := handler.deps.Service.CustomerBalances(ginCtx.Request.Context(), customerID)
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, balancesResponse{
		BottlesOutstanding: balances.BottlesOutstanding.Int(),
		DepositsHeldCents:  balances.DepositsHeldCents.Int64(),
		LastTransaction:    balances.LastTransactionUnixUTC,
	})
}

func (handler *httpHandler) handleCustomerInventory(ginCtx *gin.Context) {
	customerID, err := bottlebook.NewCustomerID(ginCtx.Param("id"))
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	inventory, err := handler.deps.Service.CustomerInventory(ginCtx.Request.Context(), customerID)
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	lines := make([]inventoryLineResponse, 0, len(inventory))
	for _, line := range inventory {
		lines = append(lines, inventoryLineResponse{
			Category:    line.Category,
			Brand:       line.Brand,
			Size:        line.Size,
			BottleCount: line.BottleCount.Int(),
		})
	}
	ginCtx.JSON(http.StatusOK, lines)
}

func (handler *httpHandler) handleListTransactions(ginCtx *gin.Context) {
	transactions, err := handler.deps.Service.Transactions(ginCtx.Request.Context())
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	documents := make([]gin.H, 0, len(transactions))
	for _, transaction := range transactions {
		document := bottlebook.EncodeTransaction(transaction)
		// The name join is response-only; it never round-trips.
		documents = append(documents, gin.H{
			"transaction":  document,
			"customerName": transaction.CustomerName,
		})
	}
	ginCtx.JSON(http.StatusOK, documents)
}

func (handler *httpHandler) handleAddTransaction(ginCtx *gin.Context) {
	var document bottlebook.TransactionDocument
	if err := ginCtx.ShouldBindJSON(&document); err != nil {
		ginCtx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	transaction, err := bottlebook.DecodeTransaction(document)
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	transaction.LastSyncedUnixUTC = nil
	if err := handler.deps.Service.AddTransaction(ginCtx.Request.Context(), transaction); err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusCreated)
}

func (handler *httpHandler) handleDeleteTransaction(ginCtx *gin.Context) {
	transactionID, err := bottlebook.NewTransactionID(ginCtx.Param("id"))
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	if err := handler.deps.Service.DeleteTransaction(ginCtx.Request.Context(), transactionID); err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handlePendingCount(ginCtx *gin.Context) {
	count, err := handler.deps.Service.PendingChangesCount(ginCtx.Request.Context())
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, gin.H{"pendingChanges": count})
}

func (handler *httpHandler) handleSyncStatus(ginCtx *gin.Context) {
	count, err := handler.deps.Service.PendingChangesCount(ginCtx.Request.Context())
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, syncStatusResponse{
		Status:          handler.deps.Monitor.Status().String(),
		LastSyncUnixUTC: handler.deps.Monitor.LastSyncUnixUTC(),
		PendingChanges:  count,
	})
}

func (handler *httpHandler) handleTriggerSync(ginCtx *gin.Context) {
	report, err := handler.deps.Engine.TriggerSync(ginCtx.Request.Context())
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, encodeReport(report))
}

func (handler *httpHandler) handlePushAll(ginCtx *gin.Context) {
	report, err := handler.deps.Engine.PushAll(ginCtx.Request.Context())
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, encodeReport(report))
}

// handlePullAll replaces the whole local dataset with the remote one.
// The confirm flag is the caller's acknowledgment of the overwrite.
func (handler *httpHandler) handlePullAll(ginCtx *gin.Context) {
	if ginCtx.Query("confirm") != "true" {
		ginCtx.JSON(http.StatusPreconditionRequired, errorResponse("confirm_required",
			"pull overwrites all local data; repeat with confirm=true"))
		return
	}
	requestCtx := ginCtx.Request.Context()
	customers, transactions, err := handler.deps.Engine.PullAll(requestCtx)
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	if err := handler.deps.Store.ReplaceAll(requestCtx, customers, transactions); err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, gin.H{
		"customers":    len(customers),
		"transactions": len(transactions),
	})
}

func (handler *httpHandler) handleExportSnapshot(ginCtx *gin.Context) {
	raw, err := handler.deps.Service.ExportSnapshot(ginCtx.Request.Context())
	if err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.Data(http.StatusOK, "application/json", raw)
}

func (handler *httpHandler) handleImportSnapshot(ginCtx *gin.Context) {
	raw, err := io.ReadAll(ginCtx.Request.Body)
	if err != nil {
		ginCtx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	if err := handler.deps.Service.ImportSnapshot(ginCtx.Request.Context(), raw); err != nil {
		handler.fail(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

func (handler *httpHandler) fail(ginCtx *gin.Context, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		handler.deps.Logger.Error("request failed", zap.String("path", ginCtx.FullPath()), zap.Error(err))
	}
	ginCtx.JSON(status, errorResponse(code, err.Error()))
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, bottlebook.ErrDuplicatePhone):
		return http.StatusConflict, "duplicate_phone"
	case errors.Is(err, bottlebook.ErrUnknownCustomer), errors.Is(err, bottlebook.ErrUnknownTransaction):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, bottlebook.ErrInsufficientOutstanding):
		return http.StatusUnprocessableEntity, "insufficient_outstanding"
	case errors.Is(err, bottlebook.ErrInvalidSnapshot):
		return http.StatusBadRequest, "invalid_snapshot"
	case errors.Is(err, cloudsync.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, cloudsync.ErrRemoteNotConfigured):
		return http.StatusPreconditionFailed, "remote_not_configured"
	case errors.Is(err, cloudsync.ErrSyncInProgress):
		return http.StatusConflict, "sync_in_progress"
	case errors.Is(err, cloudsync.ErrNoDataToSync):
		return http.StatusUnprocessableEntity, "no_data_to_sync"
	case errors.Is(err, cloudsync.ErrRemoteUnreachable):
		return http.StatusServiceUnavailable, "remote_unreachable"
	case errors.Is(err, bottlebook.ErrInvalidCustomerID),
		errors.Is(err, bottlebook.ErrInvalidTransactionID),
		errors.Is(err, bottlebook.ErrInvalidPhoneNumber),
		errors.Is(err, bottlebook.ErrInvalidTrustStatus),
		errors.Is(err, bottlebook.ErrInvalidTransactionType),
		errors.Is(err, bottlebook.ErrInvalidBottleCount),
		errors.Is(err, bottlebook.ErrInvalidDepositCents):
		return http.StatusBadRequest, "validation_failed"
	}
	return http.StatusInternalServerError, "internal"
}

func encodeReport(report cloudsync.Report) syncReportResponse {
	return syncReportResponse{
		Outcome:   string(report.Outcome),
		Applied:   report.Applied,
		Failed:    report.Failed,
		Remaining: report.Remaining,
	}
}

func encodeTransactions(transactions []bottlebook.Transaction) []bottlebook.TransactionDocument {
	documents := make([]bottlebook.TransactionDocument, 0, len(transactions))
	for _, transaction := range transactions {
		documents = append(documents, bottlebook.EncodeTransaction(transaction))
	}
	return documents
}

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": code, "message": message}
}
