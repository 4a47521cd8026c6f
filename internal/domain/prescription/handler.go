package prescription

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telemon/telemon/internal/platform/apperr"
	"github.com/telemon/telemon/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole(auth.RolePhysician)
	g := api.Group("/prescriptions", role)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.POST("/:id/revoke", h.Revoke)

	api.GET("/patients/:id/active-medications", h.ListActive, role)
}

type itemRequest struct {
	MedicationID uuid.UUID `json:"medication_id"`
	Dosage       string    `json:"dosage"`
	Quantity     *string   `json:"quantity"`
	Form         *string   `json:"form"`
	Duration     *string   `json:"duration"`
	Frequency    *string   `json:"frequency"`
	Instructions *string   `json:"instructions"`
}

type createRequest struct {
	ConsultationID uuid.UUID     `json:"consultation_id"`
	PatientID      uuid.UUID     `json:"patient_id"`
	Type           Type          `json:"type"`
	Items          []itemRequest `json:"items"`
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	prescriberID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := CreateInput{
		ConsultationID: req.ConsultationID,
		PatientID:      req.PatientID,
		PrescriberID:   prescriberID,
		DeclaredType:   req.Type,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, ItemInput(it))
	}

	fp, err := h.svc.CreateFormalPrescription(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, fp)
}

func (h *Handler) Get(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	fp, err := h.svc.Get(c.Request().Context(), id, clinicianID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, fp)
}

func (h *Handler) Revoke(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req revokeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	fp, err := h.svc.RevokePrescription(c.Request().Context(), id, clinicianID, req.Reason)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, fp)
}

func (h *Handler) ListActive(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListActiveMedications(c.Request().Context(), patientID, clinicianID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*ActivePrescription{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}
