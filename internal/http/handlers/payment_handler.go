package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// PaymentHandler предоставляет HTTP слой внутреннего леджера:
// баланс, пополнение и журнал транзакций.
type PaymentHandler struct {
	escrow *service.EscrowService
}

// NewPaymentHandler создаёт хэндлер.
func NewPaymentHandler(escrow *service.EscrowService) *PaymentHandler {
	return &PaymentHandler{escrow: escrow}
}

// GetBalance обрабатывает GET /balance.
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.escrow.GetBalance(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.escrow.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		Balance:      balance,
		Transactions: transactions,
	})
}

// Deposit обрабатывает POST /balance/deposit.
func (h *PaymentHandler) Deposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.DepositRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	tx, err := h.escrow.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, tx)
}

// GetEscrowEntry обрабатывает GET /milestones/:id/escrow.
func (h *PaymentHandler) GetEscrowEntry(c *gin.Context) {
	milestoneID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	entry, err := h.escrow.GetEntry(c.Request.Context(), milestoneID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ListTransactions обрабатывает GET /transactions.
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.escrow.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"limit":        limit,
		"offset":       offset,
	})
}
