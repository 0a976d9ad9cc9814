// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/transport/tcp"
)

var sendCmd = &cobra.Command{
	Use:   "send URL MESSAGE",
	Short: "Connect, send one message and disconnect",
	Long: `Connect to URL, write MESSAGE as the body of one message exchange and close.
A URL without a port uses the scheme's default port from the configuration.

Examples:
  hioload-tcp send tcp://127.0.0.1:1883 "Hello World"
  hioload-tcp send mqtt://broker.local/devices/42 ping`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) (err error) {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	cli := tcp.NewClient(tcp.WithConfig(cfg.TCP), tcp.WithLogger(log))
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, cli.Shutdown(sctx))
	}()

	ctx := cmd.Context()
	ch, err := cli.Connect(ctx, args[0])
	if err != nil {
		return err
	}
	return ch.Fetch(ctx, "/", tcp.MessageOptions{}, func(m *tcp.Context) error {
		_, err := io.WriteString(m.Body(), args[1])
		return err
	})
}
