package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"propflow/internal/engine/events"
	"propflow/internal/engine/rules"
	"propflow/internal/engine/webhooks"
	"propflow/internal/pkg/errors"
	"propflow/internal/pkg/logger"
)

type EventsHandler struct {
	ingestor   *events.Ingestor
	engine     *rules.Engine
	dispatcher *webhooks.Dispatcher
	inflight   sync.WaitGroup
	log        zerolog.Logger
}

func NewEventsHandler(ingestor *events.Ingestor, engine *rules.Engine, dispatcher *webhooks.Dispatcher) *EventsHandler {
	return &EventsHandler{
		ingestor:   ingestor,
		engine:     engine,
		dispatcher: dispatcher,
		log:        logger.For("events_handler"),
	}
}

// Wait blocks until background ingestions started with ?async=true finish.
func (h *EventsHandler) Wait() {
	h.inflight.Wait()
}

func (h *EventsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	// Validated below, once the organization is resolved.
	var ev events.Event
	if err := decodeJSON(r, &ev); err != nil {
		errors.FromError(w, err)
		return
	}

	orgID, allowed := resolveOrg(t, ev.OrganizationID)
	if !allowed {
		writeForbiddenOrg(w)
		return
	}
	ev.OrganizationID = orgID

	if err := h.ingestor.Validate(ev); err != nil {
		errors.FromError(w, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.inflight.Add(1)
		go func() {
			defer h.inflight.Done()
			if _, err := h.ingestor.Ingest(context.WithoutCancel(r.Context()), ev); err != nil {
				h.log.Error().Err(err).Str("event_type", ev.Type).Msg("async ingestion failed")
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event_type": ev.Type})
		return
	}

	// A client hanging up must not cut a retry cycle short.
	result, err := h.ingestor.Ingest(context.WithoutCancel(r.Context()), ev)
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type evaluateRequest struct {
	OrganizationID string                 `json:"organization_id"`
	TriggerType    string                 `json:"trigger_type" validate:"required"`
	TriggerData    map[string]interface{} `json:"trigger_data"`
}

// Evaluate runs the rule engine directly. Service callers that leave
// organization_id empty evaluate the rules of every organization.
func (h *EventsHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req evaluateRequest
	if err := decode(r, &req); err != nil {
		errors.FromError(w, err)
		return
	}

	orgID, allowed := resolveOrg(t, req.OrganizationID)
	if !allowed {
		writeForbiddenOrg(w)
		return
	}

	results, err := h.engine.Evaluate(r.Context(), orgID, req.TriggerType, req.TriggerData)
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trigger_type": req.TriggerType,
		"results":      results,
	})
}

type dispatchRequest struct {
	OrganizationID string                 `json:"organization_id"`
	EventType      string                 `json:"event_type" validate:"required"`
	Payload        map[string]interface{} `json:"payload"`
}

func (h *EventsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dispatchRequest
	if err := decode(r, &req); err != nil {
		errors.FromError(w, err)
		return
	}

	orgID, allowed := resolveOrg(t, req.OrganizationID)
	if !allowed {
		writeForbiddenOrg(w)
		return
	}

	outcomes, err := h.dispatcher.Dispatch(context.WithoutCancel(r.Context()), orgID, req.EventType, req.Payload)
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_type": req.EventType,
		"deliveries": outcomes,
	})
}
