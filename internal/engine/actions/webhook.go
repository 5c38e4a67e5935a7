package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"
)

const webhookActionTimeout = 30 * time.Second

// CallWebhook posts the trigger data to config.url exactly once. Reliable
// delivery belongs to the webhook dispatcher, not to this action.
func CallWebhook(client *http.Client) Executor {
	if client == nil {
		client = &http.Client{}
	}

	return ExecutorFunc(func(ctx context.Context, req Request) Result {
		target := stringParam(req.Config, "url")
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return failed("invalid webhook url: %q", target)
		}

		body, err := json.Marshal(req.Data)
		if err != nil {
			return failed("trigger data is not serializable: %v", err)
		}

		ctx, cancel := context.WithTimeout(ctx, webhookActionTimeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return failed("failed to create request: %v", err)
		}
		if headers, isMap := req.Config["headers"].(map[string]interface{}); isMap {
			for k, v := range headers {
				if s, isString := v.(string); isString {
					httpReq.Header.Set(k, s)
				}
			}
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return failed("webhook request failed: %v", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			res := failed("webhook returned HTTP %d", resp.StatusCode)
			res.StatusCode = resp.StatusCode
			return res
		}
		res := ok("webhook returned HTTP %d", resp.StatusCode)
		res.StatusCode = resp.StatusCode
		return res
	})
}
