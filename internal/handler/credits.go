package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/credit"
	"github.com/iliyamo/aether/internal/middleware"
)

// CreditHandler reports the caller's balance.  The daily refresh has
// already run in middleware.EnsureAccount.
type CreditHandler struct {
	Credits *credit.Ledger
	Log     zerolog.Logger
}

func NewCreditHandler(credits *credit.Ledger, log zerolog.Logger) *CreditHandler {
	return &CreditHandler{Credits: credits, Log: log}
}

func (h *CreditHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Credits.Balance(ctx, middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"credits": n})
}
