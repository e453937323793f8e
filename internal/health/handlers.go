package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

var notReady atomic.Bool

// SetReady flips the process-wide readiness flag. Servers clear it when
// shutdown starts so load balancers stop routing new requests.
func SetReady(ready bool) {
	notReady.Store(!ready)
}

// Probe is a named readiness dependency check.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// RedisProbe pings client.
func RedisProbe(client redis.Cmdable, timeout time.Duration) Probe {
	return Probe{
		Name:    "redis",
		Timeout: timeout,
		Check: func(ctx context.Context) error {
			if client == nil {
				return errors.New("redis not configured")
			}
			return client.Ping(ctx).Err()
		},
	}
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. Without probes the
// service is ready as long as it is not shutting down.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := true
	if notReady.Load() {
		status["server"] = "shutting down"
		healthy = false
	}
	for _, p := range h.Probes {
		if p.Check == nil {
			continue
		}
		result := "ok"
		if err := run(r.Context(), p); err != nil {
			result = err.Error()
			healthy = false
		}
		status[p.Name] = result
	}
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func run(ctx context.Context, p Probe) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
