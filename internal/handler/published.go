package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/ledger"
)

// PublishedHandler serves published sites to anyone.
type PublishedHandler struct {
	History *ledger.Ledger
	Log     zerolog.Logger
}

func NewPublishedHandler(history *ledger.Ledger, log zerolog.Logger) *PublishedHandler {
	return &PublishedHandler{History: history, Log: log}
}

// List returns every published project.
func (h *PublishedHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	projects, err := h.History.ListPublished(ctx)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"projects": projects})
}

// Site renders a published project's live code as HTML.  Unpublished
// projects and projects without code are 404.
func (h *PublishedHandler) Site(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.History.Published(ctx, c.Param("id"))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	if p.CurrentCode == nil || *p.CurrentCode == "" {
		return writeErr(c, http.StatusNotFound, ErrCodeNotFound, "site has no content yet")
	}
	return c.HTMLBlob(http.StatusOK, []byte(*p.CurrentCode))
}
