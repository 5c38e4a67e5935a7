package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"propflow/internal/pkg/logger"
)

// Request is what a rule hands to its action.
type Request struct {
	OrganizationID string
	RuleID         string
	Config         map[string]interface{}
	Data           map[string]interface{}
}

type Result struct {
	Success    bool   `json:"success"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

func ok(format string, args ...interface{}) Result {
	return Result{Success: true, Detail: fmt.Sprintf(format, args...)}
}

func failed(format string, args ...interface{}) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Executor performs one kind of action. Executors must tolerate being
// called more than once for the same event.
type Executor interface {
	Execute(ctx context.Context, req Request) Result
}

type ExecutorFunc func(ctx context.Context, req Request) Result

func (f ExecutorFunc) Execute(ctx context.Context, req Request) Result {
	return f(ctx, req)
}

// Registry maps action kinds to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	log       zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		log:       logger.For("actions"),
	}
}

func (r *Registry) Register(kind string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[kind] = e
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Execute runs the executor registered for kind. It never panics and never
// returns an error: every failure is folded into the Result.
func (r *Registry) Execute(ctx context.Context, kind string, req Request) (res Result) {
	r.mu.RLock()
	e, found := r.executors[kind]
	r.mu.RUnlock()
	if !found {
		return failed("unknown action type: %s", kind)
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error().
				Interface("panic", p).
				Str("action_type", kind).
				Str("rule_id", req.RuleID).
				Msg("recovered from panic in action executor")
			res = failed("action panicked: %v", p)
		}
	}()

	if req.Config == nil {
		req.Config = map[string]interface{}{}
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}
	return e.Execute(ctx, req)
}

func stringParam(cfg map[string]interface{}, key string) string {
	switch v := cfg[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intParam(cfg map[string]interface{}, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}
