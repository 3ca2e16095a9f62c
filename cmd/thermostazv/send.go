package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/uart"
)

var errUnknownOrder = errors.New("unknown order")

func newSendCmd(opts *options) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:       "send <get|ping|hot|cold>",
		Short:     "Send one command to the device and print the replies",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"get", "ping", "hot", "cold"},
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := parseOrder(args[0])
			if err != nil {
				return err
			}

			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			port, err := uart.Open(cmd.Context(), serialConfig(cfg))
			if err != nil {
				return fmt.Errorf("opening serial link: %w", err)
			}
			defer func() { _ = port.Close() }()

			return sendAndWait(cmd.Context(), port, order, wait, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVarP(&wait, "wait", "w", 3*time.Second, "How long to print replies")
	return cmd
}

// parseOrder maps a command-line word to a device command.
func parseOrder(word string) (protocol.Command, error) {
	switch strings.ToLower(word) {
	case "get":
		return protocol.Get{}, nil
	case "ping":
		return protocol.Ping{}, nil
	case "hot":
		return protocol.Set{Relay: protocol.Hot}, nil
	case "cold":
		return protocol.Set{Relay: protocol.Cold}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownOrder, word)
	}
}

// sendAndWait writes one frame then prints replies until wait elapses.
// Device pings seen meanwhile are answered so the link stays healthy.
func sendAndWait(ctx context.Context, port uart.Port, order protocol.Command, wait time.Duration, out io.Writer) error {
	w := uart.NewWriter(port, nil)
	if err := w.Write(order); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s\n", order)

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	return uart.Scan(ctx, port, func(c protocol.Command, err error) error {
		printFrame(out, c, err)
		if _, ok := c.(protocol.Ping); ok && err == nil {
			return w.Write(protocol.Pong{})
		}
		return nil
	})
}
