package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"propflow/internal/engine/rules"
	"propflow/internal/engine/webhooks"
	"propflow/internal/pkg/logger"
	"propflow/internal/pkg/metrics"
	"propflow/internal/pkg/validator"
	"propflow/internal/platform/models"
)

// Event is a domain event emitted by the rest of the application.
type Event struct {
	Type           string                 `json:"type" validate:"required"`
	TriggerType    string                 `json:"trigger_type,omitempty"`
	EntityType     string                 `json:"entity_type,omitempty"`
	EntityID       string                 `json:"entity_id,omitempty"`
	OrganizationID string                 `json:"organization_id" validate:"required"`
	Payload        map[string]interface{} `json:"payload"`
}

type RuleEvaluator interface {
	Evaluate(ctx context.Context, orgID, triggerType string, data map[string]interface{}) ([]rules.RuleExecutionResult, error)
}

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, orgID, eventType string, payload map[string]interface{}) ([]webhooks.DeliveryOutcome, error)
}

// IngestResult carries the independent outcomes of both fan-out paths.
type IngestResult struct {
	EventType       string                      `json:"event_type"`
	TriggerType     string                      `json:"trigger_type,omitempty"`
	Rules           []rules.RuleExecutionResult `json:"rules"`
	RulesError      string                      `json:"rules_error,omitempty"`
	Deliveries      []webhooks.DeliveryOutcome  `json:"deliveries"`
	DeliveriesError string                      `json:"deliveries_error,omitempty"`
}

type Ingestor struct {
	rules      RuleEvaluator
	dispatcher WebhookDispatcher
	triggers   map[string]string
	now        func() time.Time
	log        zerolog.Logger
}

// NewIngestor builds the front door. triggers maps event types to the rule
// trigger type they feed; events without a mapping only go to webhooks.
func NewIngestor(evaluator RuleEvaluator, dispatcher WebhookDispatcher, triggers map[string]string) *Ingestor {
	if triggers == nil {
		triggers = map[string]string{}
	}
	return &Ingestor{
		rules:      evaluator,
		dispatcher: dispatcher,
		triggers:   triggers,
		now:        time.Now,
		log:        logger.For("events"),
	}
}

// TriggerFor resolves the rule trigger type of an event. An explicit
// TriggerType wins over the configured mapping.
func (i *Ingestor) TriggerFor(ev Event) string {
	if ev.TriggerType != "" {
		return ev.TriggerType
	}
	return i.triggers[ev.Type]
}

// Validate rejects malformed events before any side effect.
func (i *Ingestor) Validate(ev Event) error {
	if err := validator.Struct(ev); err != nil {
		return err
	}
	if ev.TriggerType != "" && !models.IsTriggerType(ev.TriggerType) {
		return models.Invalid("unknown trigger type: %s", ev.TriggerType)
	}
	return nil
}

// Ingest fans an event out to the rule engine and the webhook dispatcher
// concurrently. Only validation failures are returned as errors; everything
// after that is reported inside the result.
func (i *Ingestor) Ingest(ctx context.Context, ev Event) (*IngestResult, error) {
	if err := i.Validate(ev); err != nil {
		return nil, err
	}
	metrics.EventsIngested.WithLabelValues(ev.Type).Inc()

	result := &IngestResult{
		EventType:   ev.Type,
		TriggerType: i.TriggerFor(ev),
		Rules:       []rules.RuleExecutionResult{},
		Deliveries:  []webhooks.DeliveryOutcome{},
	}
	lg := i.log.With().
		Str("organization_id", ev.OrganizationID).
		Str("event_type", ev.Type).
		Logger()

	var g errgroup.Group

	if result.TriggerType != "" {
		data := i.triggerData(ev)
		g.Go(func() error {
			err := safely(func() error {
				res, err := i.rules.Evaluate(ctx, ev.OrganizationID, result.TriggerType, data)
				if err != nil {
					return err
				}
				result.Rules = res
				return nil
			})
			if err != nil {
				lg.Error().Err(err).Msg("rule evaluation failed")
				result.RulesError = err.Error()
			}
			return nil
		})
	}

	payload := i.webhookPayload(ev)
	g.Go(func() error {
		err := safely(func() error {
			out, err := i.dispatcher.Dispatch(ctx, ev.OrganizationID, ev.Type, payload)
			if err != nil {
				return err
			}
			result.Deliveries = out
			return nil
		})
		if err != nil {
			lg.Error().Err(err).Msg("webhook dispatch failed")
			result.DeliveriesError = err.Error()
		}
		return nil
	})

	g.Wait()

	lg.Info().
		Int("rules_executed", len(result.Rules)).
		Int("deliveries", len(result.Deliveries)).
		Msg("event ingested")

	return result, nil
}

// triggerData is the event payload plus the entity reference, without
// overriding payload keys of the same name.
func (i *Ingestor) triggerData(ev Event) map[string]interface{} {
	data := make(map[string]interface{}, len(ev.Payload)+3)
	for k, v := range ev.Payload {
		data[k] = v
	}
	setDefault(data, "event_type", ev.Type)
	if ev.EntityType != "" {
		setDefault(data, "entity_type", ev.EntityType)
	}
	if ev.EntityID != "" {
		setDefault(data, "entity_id", ev.EntityID)
	}
	return data
}

func (i *Ingestor) webhookPayload(ev Event) map[string]interface{} {
	data := ev.Payload
	if data == nil {
		data = map[string]interface{}{}
	}
	return map[string]interface{}{
		"event":           ev.Type,
		"organization_id": ev.OrganizationID,
		"entity_type":     ev.EntityType,
		"entity_id":       ev.EntityID,
		"data":            data,
		"timestamp":       i.now().Unix(),
	}
}

func setDefault(m map[string]interface{}, key string, v interface{}) {
	if _, exists := m[key]; !exists {
		m[key] = v
	}
}

func safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("internal error: %v", p)
		}
	}()
	return fn()
}
