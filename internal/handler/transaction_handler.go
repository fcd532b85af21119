package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/middleware"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionCommander defines the money-movement operations used by TransactionHandler.
type TransactionCommander interface {
	Deposit(context.Context, cqrs.DepositCommand) (*models.Account, error)
	Withdraw(context.Context, cqrs.WithdrawCommand) (*models.Account, error)
	Transfer(context.Context, cqrs.TransferCommand) (*models.TransferResult, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	logger   *zap.Logger
}

// AmountRequest carries a deposit or withdrawal. The sign of Amount is
// checked by the ledger, not here.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// TransferRequest ids follow the same rule as path ids: positive integers.
type TransferRequest struct {
	FromAccountID int64            `json:"from_account_id" validate:"gt=0"`
	ToAccountID   int64            `json:"to_account_id" validate:"gt=0"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
}

type TransferResponse struct {
	Message     string         `json:"message"`
	FromAccount models.Account `json:"from_account"`
	ToAccount   models.Account `json:"to_account"`
}

func NewTransactionHandler(commands TransactionCommander, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{commands: commands, logger: logger}
}

func (h *TransactionHandler) Deposit(c *gin.Context) {
	id, amount, ok := bindAmount(c)
	if !ok {
		return
	}

	account, err := h.commands.Deposit(c.Request.Context(), cqrs.DepositCommand{AccountID: id, Amount: amount})
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *TransactionHandler) Withdraw(c *gin.Context) {
	id, amount, ok := bindAmount(c)
	if !ok {
		return
	}

	account, err := h.commands.Withdraw(c.Request.Context(), cqrs.WithdrawCommand{AccountID: id, Amount: amount})
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *TransactionHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithBadRequest(c, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.Transfer(c.Request.Context(), cqrs.TransferCommand{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        *req.Amount,
	})
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, TransferResponse{
		Message:     "Transfer successful",
		FromAccount: result.From,
		ToAccount:   result.To,
	})
}

func bindAmount(c *gin.Context) (int64, decimal.Decimal, bool) {
	id, ok := accountIDParam(c)
	if !ok {
		return 0, decimal.Zero, false
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithBadRequest(c, "Invalid request body")
		return 0, decimal.Zero, false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return 0, decimal.Zero, false
	}
	return id, *req.Amount, true
}
