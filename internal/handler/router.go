package handler

import (
	"errors"
	"net/http"

	"github.com/eaglebank/ledger-service/shared/apperr"
	"github.com/eaglebank/ledger-service/shared/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const welcomeMessage = "Welcome to the Banking API!"

// RegisterRoutes mounts the ledger API on r.
func RegisterRoutes(r gin.IRouter, accounts *AccountHandler, transactions *TransactionHandler) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/accounts", accounts.OpenAccount)
	r.GET("/accounts", accounts.ListAccounts)
	r.GET("/accounts/:id", accounts.GetAccount)
	r.DELETE("/accounts/:id", accounts.CloseAccount)

	r.POST("/accounts/:id/deposit", transactions.Deposit)
	r.POST("/accounts/:id/withdraw", transactions.Withdraw)
	r.POST("/transfer", transactions.Transfer)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput, apperr.InsufficientFunds:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondWithLedgerError writes err as an ErrorResponse. Storage failures
// never expose the underlying cause to the caller.
func respondWithLedgerError(c *gin.Context, logger *zap.Logger, err error) {
	_ = c.Error(err)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.StorageFailure {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		middleware.RespondWithError(c, http.StatusInternalServerError,
			apperr.New(apperr.StorageFailure, apperr.CodeStorageFailure, "Internal server error"))
		return
	}
	middleware.RespondWithError(c, statusFor(appErr.Kind), appErr)
}
