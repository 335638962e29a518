package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zatekoja/caremarket/backend/internal/domain/providers"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow facility change events as JSON lines",
	Long: `Events subscribes to the facility update channel and prints every event
published by imports and purges, one JSON object per line, until interrupted.`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	stack, err := loadStack(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer stack.Close()

	if stack.EventBus == nil {
		return fmt.Errorf("facility events need Redis; set REDIS_ENABLED and check REDIS_HOST")
	}

	events, err := stack.EventBus.Subscribe(cmd.Context(), providers.EventChannelFacilityUpdates)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for event := range events {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
	return nil
}
