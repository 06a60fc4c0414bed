package httputils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/constants"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CorrelationIDHeader = "X-Correlation-Id"
	MaxBodyBytes        = 1 << 20
)

var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrEmptyBody    = errors.New("request body is empty")
)

// APIResponse wraps all API responses with metadata
type APIResponse struct {
	ResponseTime  time.Time `json:"responseTime" example:"2024-01-15T10:30:00Z"`
	CorrelationId string    `json:"correlationId" example:"550e8400-e29b-41d4-a716-446655440000"`
	Code          string    `json:"code,omitempty" example:"LINK_CREATED"`
	Data          any       `json:"data,omitempty"`
	Error         string    `json:"error,omitempty" example:"INVALID_REQUEST"`
	Message       string    `json:"message,omitempty" example:"Link not found"`
}

// GetCorrelationID returns the caller's correlation id, or a fresh UUID v4.
func GetCorrelationID(r *http.Request) string {
	correlationID := r.Header.Get(CorrelationIDHeader)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return correlationID
}

// WriteAPIError writes an error response with metadata using a predefined APIError
func WriteAPIError(w http.ResponseWriter, r *http.Request, apiErr constants.APIError) {
	writeEnvelope(w, r, apiErr.Status, APIResponse{
		Error:   apiErr.Code,
		Message: apiErr.Message,
	})
}

// WriteAPISuccess writes a success response with metadata using a predefined APISuccess
func WriteAPISuccess(w http.ResponseWriter, r *http.Request, apiSuccess constants.APISuccess, data any) {
	writeEnvelope(w, r, apiSuccess.Status, APIResponse{
		Code: apiSuccess.Code,
		Data: data,
	})
}

// RespondJSON writes data as a bare JSON body, without the envelope.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode json response", zap.Error(err))
	}
}

// WriteText writes a plain-text body, used where clients expect a bare value.
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// DecodeJSON reads at most MaxBodyBytes from r.Body into dst and rejects
// unknown fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return ErrEmptyBody
		default:
			return err
		}
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON object")
	}
	return nil
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, response APIResponse) {
	correlationID := GetCorrelationID(r)
	response.ResponseTime = time.Now().UTC()
	response.CorrelationId = correlationID

	w.Header().Set(CorrelationIDHeader, correlationID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		zap.L().Error("failed to encode json response", zap.Error(err))
	}
}
