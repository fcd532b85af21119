package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/middleware"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/eaglebank/ledger-service/shared/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountCommander defines the account lifecycle operations used by AccountHandler.
type AccountCommander interface {
	OpenAccount(context.Context, cqrs.OpenAccountCommand) (*models.Account, error)
	CloseAccount(context.Context, cqrs.CloseAccountCommand) (*models.CloseReceipt, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.Account, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.Account, error)
}

// AccountHandler handles account lifecycle HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
	logger   *zap.Logger
}

// OpenAccountRequest leaves emptiness of owner_name to the ledger; only a
// missing field is a request error.
type OpenAccountRequest struct {
	OwnerName      *string          `json:"owner_name" validate:"required"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

type CloseAccountResponse struct {
	Message   string `json:"message"`
	ID        int64  `json:"id"`
	OwnerName string `json:"owner_name"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries, logger: logger}
}

func (h *AccountHandler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithBadRequest(c, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	initial := decimal.Zero
	if req.InitialBalance != nil {
		initial = *req.InitialBalance
	}

	account, err := h.commands.OpenAccount(c.Request.Context(), cqrs.OpenAccountCommand{
		OwnerName:      *req.OwnerName,
		InitialBalance: initial,
	})
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{})
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, ok := accountIDParam(c)
	if !ok {
		return
	}

	account, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{AccountID: id})
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) CloseAccount(c *gin.Context) {
	id, ok := accountIDParam(c)
	if !ok {
		return
	}

	receipt, err := h.commands.CloseAccount(c.Request.Context(), cqrs.CloseAccountCommand{AccountID: id})
	if err != nil {
		respondWithLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, CloseAccountResponse{
		Message:   fmt.Sprintf("Account %d (%s) has been closed", receipt.ID, receipt.OwnerName),
		ID:        receipt.ID,
		OwnerName: receipt.OwnerName,
	})
}

// accountIDParam parses :id and writes the 400 response itself on failure.
func accountIDParam(c *gin.Context) (int64, bool) {
	id, err := utils.ParseAccountID(c.Param("id"))
	if err != nil {
		middleware.RespondWithBadRequest(c, "Account id must be a positive integer")
		return 0, false
	}
	return id, true
}
