package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flightops/opsfeed/pkg/opsfeed"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Start server-side work over HTTP",
}

var triggerTestStreamCmd = &cobra.Command{
	Use:   "test-stream <query>",
	Short: "Run one test reasoning stream for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc := opsfeed.NewTriggerClient(viper.GetString("server"))
		ack, err := tc.StartTestStream(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printAck(ack)
	},
}

var triggerSimulationCmd = &cobra.Command{
	Use:   "simulation",
	Short: "Run a simulated operations day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tc := opsfeed.NewTriggerClient(viper.GetString("server"))
		ack, err := tc.StartSimulation(cmd.Context())
		if err != nil {
			return err
		}
		return printAck(ack)
	},
}

func init() {
	triggerCmd.AddCommand(triggerTestStreamCmd)
	triggerCmd.AddCommand(triggerSimulationCmd)
}

func printAck(ack *opsfeed.Ack) error {
	b, err := json.MarshalIndent(ack, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
