// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/transport/tcp"
)

const shutdownTimeout = 10 * time.Second

var (
	listenPort  int
	listenAddr  string
	metricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept TCP channels and copy their bytes to stdout",
	Long: `Accept TCP connections and copy every byte received to stdout.

Examples:
  # Listen on all interfaces, port from config (default 1883)
  hioload-tcp serve

  # Ephemeral port on loopback with Prometheus metrics
  hioload-tcp serve --address 127.0.0.1 --port 0 --metrics 127.0.0.1:9100`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&listenPort, "port", "p", -1, "listen port (overrides config)")
	serveCmd.Flags().StringVarP(&listenAddr, "address", "a", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	if listenPort >= 0 {
		cfg.Listen.Port = listenPort
	}
	if listenAddr != "" {
		cfg.Listen.Address = listenAddr
	}
	if metricsAddr != "" {
		cfg.Metrics.Address = metricsAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := tcp.NewServer(
		tcp.WithConfig(cfg.TCP),
		tcp.WithLogger(log),
		tcp.WithRegisterer(reg),
		tcp.WithInvoke(copyChannel(cmd.OutOrStdout(), log)),
	)
	addr, err := srv.Listen(ctx, cfg.Listen.Port, cfg.Listen.Address)
	if err != nil {
		return err
	}
	log.Info("serving", zap.Stringer("addr", addr))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		hs := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// copyChannel returns an invoke pipeline writing each channel's inbound
// bytes to out until the peer finishes.
func copyChannel(out io.Writer, log *zap.Logger) tcp.Handler {
	var mu sync.Mutex
	return func(ctx context.Context, c *tcp.Context) error {
		log.Info("channel accepted",
			zap.String("session", c.SessionID()),
			zap.String("remote", net.JoinHostPort(c.RemoteAddress(), strconv.Itoa(c.RemotePort()))),
		)
		buf := make([]byte, 32*1024)
		for {
			n, err := c.Stream().Read(buf)
			if n > 0 {
				mu.Lock()
				_, werr := out.Write(buf[:n])
				mu.Unlock()
				if werr != nil {
					return werr
				}
			}
			switch {
			case err == nil:
			case errors.Is(err, io.EOF):
				return nil
			case ctx.Err() != nil:
				// disconnected locally
				return nil
			default:
				return err
			}
		}
	}
}
