package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yasu-888/monologue-muser/internal/domain/event"
	"github.com/yasu-888/monologue-muser/internal/usecase"

	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
)

type UploadURLIssuer interface {
	Execute(ctx context.Context, params usecase.IssueUploadURLParams) (usecase.UploadURL, error)
}

type RecordingProcessor interface {
	Execute(ctx context.Context, obj event.Object) usecase.Report
}

// Handlers serves the upload credential endpoint.
type Handlers struct {
	issueUploadURLUC UploadURLIssuer
}

func NewHandlers(issueUploadURLUC UploadURLIssuer) *Handlers {
	return &Handlers{
		issueUploadURLUC: issueUploadURLUC,
	}
}

func (h *Handlers) IssueUploadURL(w http.ResponseWriter, r *http.Request) {
	var req usecase.IssueUploadURLParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.issueUploadURLUC.Execute(r.Context(), req)
	switch {
	case errors.Is(err, usecase.ErrTitleRequired), errors.Is(err, usecase.ErrInvalidTitle):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to issue upload url", "error", err, "title", req.Title)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// EventHandlers receives object-finalized CloudEvents pushed by the platform.
type EventHandlers struct {
	processor RecordingProcessor
}

func NewEventHandlers(processor RecordingProcessor) *EventHandlers {
	return &EventHandlers{processor: processor}
}

// HandleObjectFinalized answers 200 for every decodable event, whatever the
// pipeline outcome, so the platform does not redeliver it.
func (h *EventHandlers) HandleObjectFinalized(w http.ResponseWriter, r *http.Request) {
	ce, err := cehttp.NewEventFromHTTPRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cloudevent: "+err.Error())
		return
	}

	var obj event.Object
	if err := ce.DataAs(&obj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid storage object payload: "+err.Error())
		return
	}

	slog.InfoContext(r.Context(), "object event received",
		"ce_id", ce.ID(), "ce_type", ce.Type(), "bucket", obj.Bucket, "object", obj.Name)

	writeJSON(w, http.StatusOK, h.processor.Execute(r.Context(), obj))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
