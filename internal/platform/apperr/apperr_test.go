package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := NotFound("consultation %s not found", "abc")
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected NotFound to match ErrNotFound")
	}
	if errors.Is(err, ErrInvalidState) {
		t.Error("NotFound must not match ErrInvalidState")
	}
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("load alert: %w", InvalidState("alert is terminal"))
	if !errors.Is(err, ErrInvalidState) {
		t.Error("expected wrapped InvalidState to match")
	}
	if KindOf(err) != KindInvalidState {
		t.Errorf("expected kind invalid_state, got %q", KindOf(err))
	}
}

func TestValidation_MessageListsDetails(t *testing.T) {
	err := Validation("invalid diagnosis codes", "X1", "F3")
	want := "invalid diagnosis codes: X1; F3"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{InvalidState("x"), http.StatusConflict},
		{Validation("x"), http.StatusUnprocessableEntity},
		{Unauthorized("x"), http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestToHTTP_HidesInternalErrors(t *testing.T) {
	he := ToHTTP(errors.New("pq: connection refused"))
	if he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", he.Code)
	}
	if he.Message != "internal server error" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestToHTTP_BodyCarriesDetails(t *testing.T) {
	he := ToHTTP(Validation("consultation cannot be finalized", `diagnosis code "X1"`, "treatment_plan is required"))
	b, err := json.Marshal(he.Message)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"code":"validation","message":"consultation cannot be finalized","details":["diagnosis code \"X1\"","treatment_plan is required"]}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}
