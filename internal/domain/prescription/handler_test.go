package prescription

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telemon/telemon/internal/platform/auth"
)

func (f *fixture) serve(method, path, body string, userID uuid.UUID) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	NewHandler(f.svc).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", userID.String())
	req.Header.Set("X-User-Role", auth.RolePhysician)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateRevokeList(t *testing.T) {
	f := newFixture(t)
	body := `{"consultation_id":"` + f.finalized.String() + `","patient_id":"` + f.patient.String() + `",
		"type":"SIMPLES","items":[{"medication_id":"` + f.sertraline.ID.String() + `","dosage":"50mg","frequency":"1x ao dia"}]}`

	rec := f.serve(http.MethodPost, "/api/v1/prescriptions", body, f.doctor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var fp FormalPrescription
	if err := json.Unmarshal(rec.Body.Bytes(), &fp); err != nil {
		t.Fatal(err)
	}
	if fp.SignatureHash == nil || len(fp.Items) != 1 || fp.Items[0].Dosage != "50mg" {
		t.Errorf("unexpected prescription %+v", fp)
	}

	rec = f.serve(http.MethodGet, "/api/v1/patients/"+f.patient.String()+"/active-medications", "", f.doctor)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "1x ao dia") {
		t.Errorf("expected active medication, got %d: %s", rec.Code, rec.Body.String())
	}

	revoke := "/api/v1/prescriptions/" + fp.ID.String() + "/revoke"
	if rec := f.serve(http.MethodPost, revoke, `{"reason":"paciente apresentou alergia"}`, f.doctor); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := f.serve(http.MethodPost, revoke, `{"reason":"paciente apresentou alergia"}`, f.doctor); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on second revoke, got %d", rec.Code)
	}
}

func TestHandler_CrossValidationFailure(t *testing.T) {
	f := newFixture(t)
	body := `{"consultation_id":"` + f.finalized.String() + `","patient_id":"` + f.patient.String() + `",
		"type":"SIMPLES","items":[{"medication_id":"` + f.salbutamol.ID.String() + `","dosage":"2 jatos"}]}`

	rec := f.serve(http.MethodPost, "/api/v1/prescriptions", body, f.doctor)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Salbutamol") {
		t.Errorf("expected medication name in body, got %s", rec.Body.String())
	}

	if rec := f.serve(http.MethodGet, "/api/v1/prescriptions/"+uuid.New().String(), "", f.doctor); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
