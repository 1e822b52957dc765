package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/repository"
	"github.com/diewo77/medcrm/internal/services"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// BadRequestError wraps a malformed request body or parameter.
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string { return "bad request: " + e.Err.Error() }
func (e *BadRequestError) Unwrap() error { return e.Err }

// BadRequest builds a BadRequestError from a format string.
func BadRequest(format string, args ...any) error {
	return &BadRequestError{Err: fmt.Errorf(format, args...)}
}

// Decode reads one JSON value from the request body into v. Unknown fields
// and trailing data are rejected.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &BadRequestError{Err: err}
	}
	if dec.More() {
		return BadRequest("unexpected data after JSON body")
	}
	return nil
}

// Error writes err with the status its type maps to. Unknown errors become
// a 500 without details.
func Error(w http.ResponseWriter, err error) {
	status, body := Classify(err)
	JSON(w, status, body)
}

// Classify maps err to an HTTP status and response body.
func Classify(err error) (int, ErrorResponse) {
	var (
		invalid   *models.InvalidEntityError
		notFound  *models.NotFoundError
		negative  *pipeline.NegativeSubtotalError
		sortField *pipeline.UnsupportedSortFieldError
		sortOrder *pipeline.UnsupportedSortOrderError
		bad       *BadRequestError
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: bad.Err.Error()}
	case errors.As(err, &invalid):
		details := map[string]any{"entity": invalid.Entity, "id": invalid.ID, "field": invalid.Field, "rule": invalid.Rule}
		if !invalid.Violations.Empty() {
			details["violations"] = invalid.Violations.Map()
		}
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_entity",
			Message: invalid.Error(),
			Details: details,
		}
	case errors.As(err, &notFound):
		return http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: notFound.Error(),
			Details: map[string]string{"kind": notFound.Kind, "id": notFound.ID},
		}
	case errors.As(err, &negative):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "negative_subtotal",
			Message: negative.Error(),
			Details: map[string]string{"subtotal": negative.Subtotal.StringFixed(2), "discount": negative.Discount.StringFixed(2)},
		}
	case errors.As(err, &sortField):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "unsupported_sort_field",
			Message: sortField.Error(),
			Details: map[string]any{"field": sortField.Field, "supported": sortField.Supported},
		}
	case errors.As(err, &sortOrder):
		return http.StatusBadRequest, ErrorResponse{Error: "unsupported_sort_order", Message: sortOrder.Error()}
	case errors.Is(err, services.ErrCustomerHasDeals):
		return http.StatusConflict, ErrorResponse{Error: "customer_has_deals", Message: err.Error()}
	case errors.Is(err, services.ErrProposalLocked):
		return http.StatusConflict, ErrorResponse{Error: "proposal_locked", Message: err.Error()}
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, ErrorResponse{Error: "invalid_transition", Message: err.Error()}
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, ErrorResponse{Error: "duplicate", Message: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal_error"}
}
