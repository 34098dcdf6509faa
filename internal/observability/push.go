package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for batch runs.
const PushJob = "weather_etl"

// Push sends everything gathered by g to the Pushgateway at url, replacing
// the previous push of the same job and command.
func Push(ctx context.Context, url, command string, g prometheus.Gatherer) error {
	err := push.New(url, PushJob).
		Grouping("command", command).
		Gatherer(g).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
