package alert

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telemon/telemon/internal/platform/apperr"
	"github.com/telemon/telemon/internal/platform/auth"
	"github.com/telemon/telemon/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/alerts", auth.RequireRole(auth.RolePhysician))
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Get)
	g.PATCH("/:id/status", h.UpdateStatus)
}

type updateStatusRequest struct {
	Status        Status  `json:"status"`
	Notes         *string `json:"notes"`
	ContactMethod *string `json:"contact_method"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.UpdateStatus(c.Request().Context(), UpdateStatusInput{
		AlertID:       id,
		Status:        req.Status,
		Notes:         req.Notes,
		ContactMethod: req.ContactMethod,
		ClinicianID:   clinicianID,
	})
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Get(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id, clinicianID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := Filter{ClinicianID: clinicianID, Limit: pg.Limit, Offset: pg.Offset}
	if v := c.QueryParam("status"); v != "" {
		st := Status(v)
		f.Status = &st
	}
	if v := c.QueryParam("severity"); v != "" {
		sev := Severity(v)
		f.Severity = &sev
	}

	items, total, err := h.svc.FindAll(c.Request().Context(), f)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Alert{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Stats(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), clinicianID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}
