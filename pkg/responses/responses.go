package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/logger"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Writer renders envelopes. Underlying error text is only included when
// exposeDetails is set, which the API enables outside production.
type Writer struct {
	logg          *logger.Logger
	exposeDetails bool
}

func NewWriter(logg *logger.Logger, exposeDetails bool) *Writer {
	return &Writer{logg: logg, exposeDetails: exposeDetails}
}

func (rw *Writer) Success(w http.ResponseWriter, data any) {
	rw.SuccessStatus(w, http.StatusOK, data, "")
}

func (rw *Writer) SuccessStatus(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

func (rw *Writer) Message(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

func (rw *Writer) Error(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	payload := Envelope{Success: false, Message: meta.PublicMessage}
	if meta.ExposeMessage && typed.Message() != "" {
		payload.Message = typed.Message()
	}
	if rw != nil && rw.exposeDetails {
		payload.Error = err.Error()
	}

	if rw != nil && rw.logg != nil {
		dump := pkgerrors.Dump(err)
		ctx = rw.logg.WithFields(ctx, map[string]any{
			"error_code":    dump.Code,
			"error_chain":   dump.Chain,
			"pg_code":       dump.PGCode,
			"pg_detail":     dump.PGDetail,
			"pg_message":    dump.PGMessage,
			"pg_table":      dump.PGTable,
			"pg_constraint": dump.PGConstraint,
		})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			rw.logg.Error(ctx, "request.error", err)
		} else {
			rw.logg.Warn(ctx, "request.rejected", err)
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
