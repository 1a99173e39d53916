package securityevent

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/interex/interex/internal/platform/auth"
	"github.com/interex/interex/internal/platform/ledger"
	"github.com/interex/interex/pkg/pagination"
)

type Handler struct {
	repo  *RepoPG
	store ledger.Store
}

func NewHandler(repo *RepoPG, store ledger.Store) *Handler {
	return &Handler{repo: repo, store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole("admin"))
	admin.GET("/security-events", h.ListEvents)
	admin.GET("/security-events/digests", h.ListDigests)
}

func (h *Handler) ListEvents(c echo.Context) error {
	params := ListParams{
		Kind:     c.QueryParam("kind"),
		TenantID: c.QueryParam("tenant"),
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid from timestamp %q", v))
		}
		params.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid to timestamp %q", v))
		}
		params.To = &t
	}

	pg := pagination.FromContext(c)
	items, total, err := h.repo.List(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// ListDigests pages through the digest chain oldest-first.
func (h *Handler) ListDigests(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, err := h.store.ChainEntries(c.Request().Context(), ledger.DigestChain, int64(pg.Offset), pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   entries,
		"limit":  pg.Limit,
		"offset": pg.Offset,
	})
}
