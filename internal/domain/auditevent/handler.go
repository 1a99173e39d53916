package auditevent

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/interex/interex/internal/platform/auth"
	"github.com/interex/interex/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole("admin"))
	admin.GET("/audit-events", h.ListEntries)
	admin.GET("/audit-events/export", h.ExportEntries)
	admin.GET("/audit-events/:id", h.GetEntry)
	admin.GET("/audit-chains/:chainKey/verify", h.VerifyChain)
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit event not found")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEntries(c echo.Context) error {
	params, err := searchParamsFromRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ExportEntries(c echo.Context) error {
	params, err := searchParamsFromRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="audit-events-%s.csv"`, time.Now().UTC().Format("20060102-150405")))
	c.Response().WriteHeader(http.StatusOK)

	_, err = h.svc.ExportCSV(c.Request().Context(), c.Response(), params)
	return err
}

func (h *Handler) VerifyChain(c echo.Context) error {
	res, err := h.svc.Verify(c.Request().Context(), c.Param("chainKey"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func searchParamsFromRequest(c echo.Context) (SearchParams, error) {
	params := SearchParams{
		ChainKey:   c.QueryParam("chain"),
		Category:   c.QueryParam("category"),
		Action:     c.QueryParam("action"),
		Status:     c.QueryParam("status"),
		ActorID:    c.QueryParam("actor"),
		EntityType: c.QueryParam("entity_type"),
		EntityID:   c.QueryParam("entity_id"),
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return params, fmt.Errorf("invalid from timestamp %q", v)
		}
		params.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return params, fmt.Errorf("invalid to timestamp %q", v)
		}
		params.To = &t
	}
	return params, nil
}
