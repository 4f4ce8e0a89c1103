package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flightops/opsfeed/pkg/opsfeed"
	"github.com/flightops/opsfeed/pkg/render"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to the feed and render reasoning streams",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().String("event-log", "", "append forwarded feed events to this JSONL file")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := opsfeed.NewBus()
	registry := opsfeed.NewRegistry(bus)

	console := render.NewConsole(os.Stdout)
	console.Attach(bus)
	defer console.Detach()

	// Heavier consumers hang off the watermill side of the forwarder so the
	// read loop never waits on them.
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	forwarder, err := opsfeed.NewForwarder(bus, pubSub)
	if err != nil {
		return err
	}
	defer forwarder.Close()

	if path, _ := cmd.Flags().GetString("event-log"); path != "" {
		if err := startEventLog(ctx, pubSub, path); err != nil {
			return err
		}
	}

	client, err := opsfeed.NewClient(opsfeed.Config{
		URL:         viper.GetString("ws-url"),
		AutoConnect: true,
		RetryDelay:  viper.GetDuration("retry-delay"),
		MaxRetries:  viper.GetInt("max-retries"),
	}, bus, registry)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	<-ctx.Done()
	log.Info().Str("component", "opsfeed").Msg("shutting down")
	return nil
}

// startEventLog subscribes to every forwarded topic and appends the JSON
// payloads to a file, one event per line.
func startEventLog(ctx context.Context, pubSub *gochannel.GoChannel, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	lines := make(chan []byte, 256)
	for _, topic := range opsfeed.DefaultForwardTopics {
		ch, err := pubSub.Subscribe(ctx, opsfeed.ForwardTopic(topic))
		if err != nil {
			_ = f.Close()
			return err
		}
		go func() {
			for msg := range ch {
				lines <- msg.Payload
				msg.Ack()
			}
		}()
	}
	go func() {
		defer func() { _ = f.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-lines:
				if _, err := f.Write(append(b, '\n')); err != nil {
					log.Warn().Err(err).Str("component", "opsfeed").Str("path", path).Msg("event log write failed")
				}
			}
		}
	}()
	return nil
}
