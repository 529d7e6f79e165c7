package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// TrainingJob is the Pushgateway job name for training runs.
const TrainingJob = "disaster_prediction_training"

// Push sends the training metrics to a Pushgateway, replacing the previous
// values for the job.
func (m *TrainingMetrics) Push(ctx context.Context, gatewayURL string) error {
	pusher := push.New(gatewayURL, TrainingJob)
	for _, c := range m.collectors() {
		pusher = pusher.Collector(c)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push training metrics: %w", err)
	}
	return nil
}
