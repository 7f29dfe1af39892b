package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for one-shot runs.
const PushJob = "rainalert"

// Pusher sends gathered metrics to a Prometheus Pushgateway. One-shot runs
// exit before a scrape could observe them.
type Pusher struct {
	pusher *push.Pusher
}

// NewPusher returns a Pusher for the gateway at url, or nil when url is empty.
func NewPusher(url string, g prometheus.Gatherer) *Pusher {
	if url == "" {
		return nil
	}
	return &Pusher{pusher: push.New(url, PushJob).Gatherer(g)}
}

// Push replaces the job's metric group on the gateway. A nil Pusher is a no-op.
func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
