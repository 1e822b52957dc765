package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/repository"
	"github.com/diewo77/medcrm/internal/services"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", &models.InvalidEntityError{Entity: "deal", Field: "value", Rule: "gte"}, http.StatusUnprocessableEntity, "invalid_entity"},
		{"wrapped not found", fmt.Errorf("load: %w", &models.NotFoundError{Kind: "deal", ID: "d1"}), http.StatusNotFound, "not_found"},
		{"negative subtotal", &pipeline.NegativeSubtotalError{Subtotal: decimal.NewFromInt(5), Discount: decimal.NewFromInt(9)}, http.StatusUnprocessableEntity, "negative_subtotal"},
		{"sort field", &pipeline.UnsupportedSortFieldError{Entity: "deal", Field: "x"}, http.StatusBadRequest, "unsupported_sort_field"},
		{"sort order", &pipeline.UnsupportedSortOrderError{Order: "up"}, http.StatusBadRequest, "unsupported_sort_order"},
		{"has deals", fmt.Errorf("c1: %w", services.ErrCustomerHasDeals), http.StatusConflict, "customer_has_deals"},
		{"locked", fmt.Errorf("p1: %w", services.ErrProposalLocked), http.StatusConflict, "proposal_locked"},
		{"transition", fmt.Errorf("p1: %w", services.ErrInvalidTransition), http.StatusConflict, "invalid_transition"},
		{"duplicate", fmt.Errorf("sku: %w", repository.ErrDuplicate), http.StatusConflict, "duplicate"},
		{"bad request", BadRequest("limit must be an integer"), http.StatusBadRequest, "bad_request"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := Classify(tc.err)
			if status != tc.status || body.Error != tc.code {
				t.Fatalf("got %d %q, want %d %q", status, body.Error, tc.status, tc.code)
			}
		})
	}
}

func TestClassifyListsEveryViolation(t *testing.T) {
	_, err := models.NewDeal(models.Deal{CustomerID: "c1", Title: "Ventilators", Value: decimal.NewFromInt(-1), Probability: 140, Stage: models.StageLead})
	status, body := Classify(fmt.Errorf("create: %w", err))
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", status)
	}
	details, ok := body.Details.(map[string]any)
	if !ok {
		t.Fatalf("details = %#v", body.Details)
	}
	violations, ok := details["violations"].(map[string]string)
	if !ok || len(violations) != 2 || violations["value"] != "gte" || violations["probability"] != "lte" {
		t.Fatalf("violations = %#v", details["violations"])
	}
	if details["field"] != "value" || details["rule"] != "gte" {
		t.Fatalf("first violation = %v %v", details["field"], details["rule"])
	}
}

func TestClassifyHidesInternalErrors(t *testing.T) {
	_, body := Classify(errors.New("password=hunter2"))
	if body.Message != "" || body.Details != nil {
		t.Fatalf("internal error leaked: %+v", body)
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Apollo"}`))
	if err := Decode(req, &v); err != nil || v.Name != "Apollo" {
		t.Fatalf("decode: %v %+v", err, v)
	}

	for _, body := range []string{`{"nome":"x"}`, `{"name":`, `{"name":"a"} {"name":"b"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var bad *BadRequestError
		if err := Decode(req, &v); !errors.As(err, &bad) {
			t.Fatalf("%s: expected BadRequestError got %v", body, err)
		}
	}
}

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	JSONError(w, http.StatusTeapot, "teapot", nil)
	if w.Code != http.StatusTeapot || w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %v", w.Code, w.Header())
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"teapot"}` {
		t.Fatalf("unexpected body %s", got)
	}
}
