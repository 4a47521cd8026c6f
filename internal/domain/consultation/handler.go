package consultation

import (
	"net/http"
	"time"

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
	g := api.Group("/consultations", auth.RequireRole(auth.RolePhysician))
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.POST("/:id/finalize", h.Finalize)
	g.POST("/:id/cancel", h.Cancel)
	g.GET("/:id/signature", h.VerifySignature)
}

type draftRequest struct {
	PatientID            uuid.UUID `json:"patient_id"`
	ScheduledAt          time.Time `json:"scheduled_at"`
	DurationMinutes      int       `json:"duration_minutes"`
	Modality             *string   `json:"modality"`
	Anamnesis            *string   `json:"anamnesis"`
	DiagnosticHypothesis *string   `json:"diagnostic_hypothesis"`
	TreatmentPlan        *string   `json:"treatment_plan"`
	DiagnosisCodes       []string  `json:"diagnosis_codes"`
}

func (r draftRequest) input() DraftInput {
	return DraftInput{
		PatientID:            r.PatientID,
		ScheduledAt:          r.ScheduledAt,
		DurationMinutes:      r.DurationMinutes,
		Modality:             r.Modality,
		Anamnesis:            r.Anamnesis,
		DiagnosticHypothesis: r.DiagnosticHypothesis,
		TreatmentPlan:        r.TreatmentPlan,
		DiagnosisCodes:       r.DiagnosisCodes,
	}
}

type cancelRequest struct {
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
	doctorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.CreateDraft(c.Request().Context(), doctorID, req.input())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) Get(c echo.Context) error {
	doctorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Get(c.Request().Context(), id, doctorID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Update(c echo.Context) error {
	doctorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.UpdateDraft(c.Request().Context(), id, doctorID, req.input())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Finalize(c echo.Context) error {
	doctorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Finalize(c.Request().Context(), id, doctorID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Cancel(c echo.Context) error {
	doctorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Cancel(c.Request().Context(), id, doctorID, req.Reason)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) VerifySignature(c echo.Context) error {
	doctorID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.VerifySignature(c.Request().Context(), id, doctorID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}
