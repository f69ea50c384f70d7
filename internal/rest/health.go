package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Health states reported by CheckHealth.
const (
	HealthReachable   = "reachable"
	HealthDegraded    = "degraded"
	HealthUnreachable = "unreachable"
	HealthError       = "error"
)

// HealthStatus is the outcome of a connectivity probe.
type HealthStatus struct {
	Status     string        `json:"status" yaml:"status"`
	Message    string        `json:"message" yaml:"message"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Latency    time.Duration `json:"latency" yaml:"latency"`
}

// OK reports whether the host answered without a server error.
func (h *HealthStatus) OK() bool {
	return h.Status == HealthReachable
}

// CheckHealth probes the host root once, without credentials, retries or
// redirects. Any HTTP answer below 500 counts as reachable.
func (c *Client) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/", nil)
	if err != nil {
		status.Status = HealthError
		status.Message = fmt.Sprintf("invalid URL: %v", err)
		return status
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.transport.RoundTrip(req)
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = HealthUnreachable
		status.Message = fmt.Sprintf("connection failed: %v", err)
		return status
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	status.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 500:
		status.Status = HealthDegraded
		status.Message = fmt.Sprintf("server error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	default:
		status.Status = HealthReachable
		status.Message = fmt.Sprintf("responded %d in %s", resp.StatusCode, status.Latency.Round(time.Millisecond))
	}
	return status
}
