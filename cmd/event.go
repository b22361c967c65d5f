package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/awakery/payments-engine/internal/core/events"
	"github.com/awakery/payments-engine/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event bus commands",
	Long:  `Inspect the in-process event bus by publishing debug events and watching handlers fire`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a debug event",
	Long: `Publish a debug event of the given type (payment.confirmed, payment.failed,
disbursement.completed, disbursement.failed) and log what a subscribed handler receives`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishDebugEvent(args[0])
	},
}

var eventOrderReference string

func publishDebugEvent(eventType string) {
	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		logger.Info("debug handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	debugEvent := events.BaseEvent{
		ID:        fmt.Sprintf("debug-%d", time.Now().Unix()),
		Type:      eventType,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"order_reference": eventOrderReference,
			"source":          "cli-command",
		},
	}

	logger.Info("publishing debug event", "event_type", eventType, "event_id", debugEvent.ID)

	ctx := context.Background()
	if err := eventBus.Publish(ctx, debugEvent); err != nil {
		logger.Error("failed to publish event", "error", err)
		return
	}

	time.Sleep(100 * time.Millisecond)
	logger.Info("debug event published successfully")
}

func init() {

	publishEventCmd.Flags().StringVar(&eventOrderReference, "order-reference", "AWK-0000000000-debug", "Order reference to carry in the event payload")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
