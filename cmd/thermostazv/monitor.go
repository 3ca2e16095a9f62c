package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/uart"
)

func newMonitorCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Print decoded frames from the device",
		Long: `Open the serial link and print every decoded frame with a timestamp.
Frames that fail to decode are printed as errors. Nothing is written to the
device, so pings stay unanswered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			linkCfg := serialConfig(cfg)

			port, err := uart.Open(cmd.Context(), linkCfg)
			if err != nil {
				return fmt.Errorf("opening serial link: %w", err)
			}
			defer func() { _ = port.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Monitoring %s (Ctrl+C to stop)\n", describeLink(linkCfg))
			return monitor(cmd.Context(), port, out)
		},
	}
}

// monitor prints frames until ctx is cancelled or the link fails.
func monitor(ctx context.Context, port uart.Port, out io.Writer) error {
	return uart.Scan(ctx, port, func(c protocol.Command, err error) error {
		printFrame(out, c, err)
		return nil
	})
}

func printFrame(out io.Writer, c protocol.Command, err error) {
	ts := time.Now().Format("15:04:05.000")
	if err != nil {
		fmt.Fprintf(out, "[%s] ERR %v\n", ts, err)
		return
	}
	fmt.Fprintf(out, "[%s] %s\n", ts, c)
}
