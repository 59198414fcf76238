package playbook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// HTTPDoer is the narrow interface the HttpRequest action depends on,
// satisfied by *http.Client and by test doubles.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// newBreaker builds a circuit breaker around outbound HttpRequest actions
// so a failing downstream target stops eating retry budget across
// concurrent playbook executions.
func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "playbook-http-action",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

func httpRequestAction(breaker *gobreaker.CircuitBreaker, client HTTPDoer) ActionFunc {
	return func(ctx context.Context, incidentID model.IncidentID, params map[string]any) (ActionResult, error) {
		url, _ := params["url"].(string)
		method, _ := params["method"].(string)
		if method == "" {
			method = http.MethodGet
		}
		body, _ := params["body"].(string)

		result, err := breaker.Execute(func() (any, error) {
			req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBufferString(body))
			if err != nil {
				return nil, err
			}
			if headers, ok := params["headers"].(map[string]any); ok {
				for k, v := range headers {
					if s, ok := v.(string); ok {
						req.Header.Set(k, s)
					}
				}
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			respBody, _ := io.ReadAll(resp.Body)
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, fmt.Errorf("http request returned status %d", resp.StatusCode)
			}
			return string(respBody), nil
		})
		if err != nil {
			return ActionResult{}, err
		}
		return ActionResult{Outputs: map[string]any{"body": result}}, nil
	}
}
