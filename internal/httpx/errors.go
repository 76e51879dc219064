package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/AngelCh415/disparos-etl/internal/ingest"
	"github.com/AngelCh415/disparos-etl/internal/metrics"
	"github.com/AngelCh415/disparos-etl/internal/store"
)

// APIError is the JSON body of every non-2xx answer.
type APIError struct {
	StatusCode int            `json:"status"`
	ErrorCode  string         `json:"error"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// mapError classifies pipeline errors into HTTP answers; anything unknown
// gets fallback.
func mapError(err error, fallback int) *APIError {
	var (
		se *ingest.SchemaError
		me *ingest.MissingFileError
		qe *metrics.QueryError
		ae *APIError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &se):
		d := map[string]any{"file": se.File}
		if se.Row > 0 {
			d["row"] = se.Row
		}
		if se.Column != "" {
			d["column"] = se.Column
		}
		return &APIError{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "schema_error", Message: se.Error(), Details: d}
	case errors.As(err, &me):
		d := map[string]any{"received": me.Received}
		if len(me.Missing) > 0 {
			d["missing"] = me.Missing
		}
		return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "missing_file", Message: me.Error(), Details: d}
	case errors.Is(err, store.ErrNoDataset):
		return &APIError{StatusCode: http.StatusNotFound, ErrorCode: "no_dataset", Message: "no dataset loaded; upload both exports first"}
	case errors.As(err, &qe):
		return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "invalid_query", Message: qe.Error(), Details: map[string]any{"problems": qe.Problems}}
	case errors.Is(err, ingest.ErrFetchNotConfigured):
		return &APIError{StatusCode: http.StatusNotImplemented, ErrorCode: "fetch_not_configured", Message: err.Error()}
	}
	code := "internal"
	if fallback == http.StatusBadGateway {
		code = "upstream"
	}
	return &APIError{StatusCode: fallback, ErrorCode: code, Message: err.Error()}
}
