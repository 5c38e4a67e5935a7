package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"propflow/internal/pkg/logger"
	"propflow/internal/pkg/metrics"
	"propflow/internal/platform/models"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderAttempt   = "X-Webhook-Attempt"
	HeaderDelivery  = "X-Webhook-Delivery"

	UserAgent = "Propflow-Webhooks/1.0"

	// TestEventType is the event type of synthetic test deliveries.
	TestEventType = "webhook.test"

	DefaultWorkers         = 8
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxResponseBody = 2048
	DefaultMaxRetries      = 3
)

// SubscriptionStore is the subset of the subscription repository the dispatcher needs.
type SubscriptionStore interface {
	ListActiveForOrg(ctx context.Context, orgID string) ([]*models.WebhookSubscription, error)
	GetByID(ctx context.Context, orgID, id string) (*models.WebhookSubscription, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	IncrementFailureCount(ctx context.Context, id, lastError string) error
}

type DeliveryLog interface {
	Record(ctx context.Context, attempt *models.DeliveryAttempt) error
}

type Options struct {
	Workers         int
	RequestTimeout  time.Duration
	MaxResponseBody int
	Backoff         Backoff
	// BackoffUnit is the duration of one unit of a subscription's retry_delay.
	BackoffUnit time.Duration
	Client      *http.Client
	Now         func() time.Time
}

type Dispatcher struct {
	subs       SubscriptionStore
	deliveries DeliveryLog
	client     *http.Client
	workers    int
	timeout    time.Duration
	maxBody    int
	backoff    Backoff
	unit       time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

func NewDispatcher(subs SubscriptionStore, deliveries DeliveryLog, opts Options) *Dispatcher {
	d := &Dispatcher{
		subs:       subs,
		deliveries: deliveries,
		client:     opts.Client,
		workers:    opts.Workers,
		timeout:    opts.RequestTimeout,
		maxBody:    opts.MaxResponseBody,
		backoff:    opts.Backoff,
		unit:       opts.BackoffUnit,
		now:        opts.Now,
		log:        logger.For("webhooks"),
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.workers <= 0 {
		d.workers = DefaultWorkers
	}
	if d.timeout <= 0 {
		d.timeout = DefaultRequestTimeout
	}
	if d.maxBody <= 0 {
		d.maxBody = DefaultMaxResponseBody
	}
	if d.backoff == nil {
		d.backoff = LinearBackoff
	}
	if d.unit <= 0 {
		d.unit = time.Second
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// DeliveryOutcome summarizes one dispatch cycle toward one subscription.
type DeliveryOutcome struct {
	WebhookID  string `json:"webhook_id"`
	URL        string `json:"url"`
	DeliveryID string `json:"delivery_id"`
	Success    bool   `json:"success"`
	Attempts   int    `json:"attempts"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Dispatch delivers payload to every active subscription of the organization
// that wants eventType. Subscriptions are served concurrently; attempts toward
// one subscription are strictly sequential. Per-subscription failures are
// reported in the outcomes, only selection failures are returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID, eventType string, payload map[string]interface{}) ([]DeliveryOutcome, error) {
	if orgID == "" {
		return nil, models.Invalid("organization_id is required")
	}
	if eventType == "" {
		return nil, models.Invalid("event_type is required")
	}

	// encoding/json sorts map keys, which makes this the canonical form.
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "payload is not serializable"), models.ErrValidation)
	}

	subs, err := d.subs.ListActiveForOrg(ctx, orgID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load webhook subscriptions")
	}

	var targets []*models.WebhookSubscription
	for _, sub := range subs {
		if sub.Active && sub.Wants(eventType) {
			targets = append(targets, sub)
		}
	}

	outcomes := make([]DeliveryOutcome, len(targets))
	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, sub := range targets {
		g.Go(func() error {
			outcomes[i] = d.deliver(ctx, sub, eventType, body, true)
			return nil
		})
	}
	g.Wait()

	d.log.Info().
		Str("organization_id", orgID).
		Str("event_type", eventType).
		Int("subscriptions", len(targets)).
		Msg("webhook dispatch finished")

	return outcomes, nil
}

// Test runs one synthetic delivery cycle through the regular pipeline. Attempts
// are logged but the subscription's failure streak and last_triggered are left alone.
func (d *Dispatcher) Test(ctx context.Context, orgID, webhookID string) (DeliveryOutcome, error) {
	sub, err := d.subs.GetByID(ctx, orgID, webhookID)
	if err != nil {
		return DeliveryOutcome{}, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"event":           TestEventType,
		"organization_id": orgID,
		"webhook_id":      sub.ID,
		"test":            true,
		"timestamp":       d.now().Unix(),
	})
	if err != nil {
		return DeliveryOutcome{}, err
	}

	return d.deliver(ctx, sub, TestEventType, body, false), nil
}

type attemptResult struct {
	statusCode int
	body       string
	duration   time.Duration
	err        error
}

func (r attemptResult) ok() bool {
	return r.err == nil && r.statusCode >= 200 && r.statusCode < 300
}

func (d *Dispatcher) deliver(ctx context.Context, sub *models.WebhookSubscription, eventType string, body []byte, track bool) (out DeliveryOutcome) {
	out = DeliveryOutcome{
		WebhookID:  sub.ID,
		URL:        sub.URL,
		DeliveryID: "dlv_" + uuid.New().String(),
	}
	lg := d.log.With().
		Str("webhook_id", sub.ID).
		Str("delivery_id", out.DeliveryID).
		Str("event_type", eventType).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			lg.Error().Interface("panic", r).Msg("recovered from panic in webhook delivery")
			out.Success = false
			out.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	if sub.SecretUnreadable {
		out.Error = "unreadable signing secret"
		lg.Error().Msg("webhook signing secret could not be unsealed")
		return out
	}
	if sub.Secret == "" {
		out.Error = "missing signing secret"
		lg.Error().Msg("webhook subscription has no signing secret")
		return out
	}

	maxRetries := sub.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	base := time.Duration(sub.RetryDelay) * d.unit

	var last attemptResult
	err := retry.Do(
		func() error {
			out.Attempts++
			last = d.attempt(ctx, sub, eventType, body, out.Attempts, out.DeliveryID)
			d.record(ctx, sub, eventType, body, out.DeliveryID, out.Attempts, last)
			if last.ok() {
				return nil
			}
			return last.err
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)),
		// n is the number of the attempt that just failed.
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return d.backoff(base, int(n))
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			lg.Warn().Err(err).Uint("attempt", n+1).Msg("webhook delivery attempt failed")
		}),
	)

	out.StatusCode = last.statusCode
	bookkeeping := context.WithoutCancel(ctx)

	if err == nil {
		out.Success = true
		if track {
			if err := d.subs.MarkDelivered(bookkeeping, sub.ID, d.now()); err != nil {
				lg.Error().Err(err).Msg("failed to mark webhook delivered")
			}
		}
		return out
	}

	out.Error = err.Error()
	if ctx.Err() != nil {
		// Interrupted before the attempts ran out; the cycle did not fail.
		lg.Warn().Err(err).Int("attempts", out.Attempts).Msg("webhook delivery interrupted")
		return out
	}

	metrics.DeliveriesExhausted.Inc()
	lg.Error().Err(err).Int("attempts", out.Attempts).Msg("webhook delivery failed")
	if track {
		if err := d.subs.IncrementFailureCount(bookkeeping, sub.ID, out.Error); err != nil {
			lg.Error().Err(err).Msg("failed to increment webhook failure count")
		}
	}
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, sub *models.WebhookSubscription, eventType string, body []byte, n int, deliveryID string) attemptResult {
	var res attemptResult

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		res.err = errors.Wrap(err, "failed to create request")
		return res
	}

	// Static headers first so they can never replace the signature headers.
	for k, v := range sub.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderSignature, Sign(sub.Secret, body))
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderAttempt, strconv.Itoa(n))
	req.Header.Set(HeaderDelivery, deliveryID)

	start := time.Now()
	resp, err := d.client.Do(req)
	res.duration = time.Since(start)
	metrics.DeliveryDuration.Observe(res.duration.Seconds())
	if err != nil {
		res.err = errors.Wrap(err, "request failed")
		return res
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, int64(d.maxBody)))
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	res.statusCode = resp.StatusCode
	res.body = string(respBody)
	if !res.ok() {
		res.err = errors.Newf("HTTP %d", resp.StatusCode)
	}
	return res
}

func (d *Dispatcher) record(ctx context.Context, sub *models.WebhookSubscription, eventType string, body []byte, deliveryID string, n int, res attemptResult) {
	success := res.ok()
	metrics.DeliveryAttempts.WithLabelValues(metrics.Result(success)).Inc()

	var errMsg string
	if res.err != nil {
		errMsg = res.err.Error()
	}

	attempt := &models.DeliveryAttempt{
		WebhookID:      sub.ID,
		OrganizationID: sub.OrganizationID,
		DeliveryID:     deliveryID,
		EventType:      eventType,
		Payload:        string(body),
		Attempt:        n,
		StatusCode:     null.NewInt(int64(res.statusCode), res.statusCode != 0),
		ResponseBody:   res.body,
		ErrorMessage:   null.NewString(errMsg, res.err != nil && !success),
		DurationMS:     res.duration.Milliseconds(),
		Timestamp:      d.now().Unix(),
		Success:        success,
	}
	if err := d.deliveries.Record(context.WithoutCancel(ctx), attempt); err != nil {
		d.log.Error().Err(err).
			Str("webhook_id", sub.ID).
			Str("delivery_id", deliveryID).
			Int("attempt", n).
			Msg("failed to record delivery attempt")
	}
}
