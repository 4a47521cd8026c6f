package dailylog

import (
	"net/http"
	"time"

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
	api.POST("/daily-reports", h.Submit, auth.RequireRole(auth.RolePatient))
}

// submitRequest deliberately has no risk_flag; a client-supplied value is
// dropped by the binder.
type submitRequest struct {
	Date              string   `json:"date"`
	MoodRating        int      `json:"mood_rating"`
	MoodLevel         *int     `json:"mood_level"`
	AnxietyLevel      *int     `json:"anxiety_level"`
	IrritabilityLevel *int     `json:"irritability_level"`
	SleepHours        *float64 `json:"sleep_hours"`
	SleepQuality      *int     `json:"sleep_quality"`
	Notes             *string  `json:"notes"`
	SuicidalIdeation  bool     `json:"suicidal_ideation_flag"`
}

func (h *Handler) Submit(c echo.Context) error {
	patientID, err := auth.ActorID(c)
	if err != nil {
		return err
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := SubmitInput{
		PatientID:         patientID,
		MoodRating:        req.MoodRating,
		MoodLevel:         req.MoodLevel,
		AnxietyLevel:      req.AnxietyLevel,
		IrritabilityLevel: req.IrritabilityLevel,
		SleepHours:        req.SleepHours,
		SleepQuality:      req.SleepQuality,
		Notes:             req.Notes,
		SuicidalIdeation:  req.SuicidalIdeation,
	}
	if req.Date != "" {
		d, err := time.Parse(DateLayout, req.Date)
		if err != nil {
			return apperr.ToHTTP(apperr.Validation("invalid daily report", "date must be formatted as YYYY-MM-DD"))
		}
		in.Date = &d
	}

	sub, err := h.svc.SubmitDailyReport(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, sub)
}
