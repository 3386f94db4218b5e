// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/noolite/internal/bridge"
	"github.com/Thermoquad/noolite/internal/telemetry"
	"github.com/Thermoquad/noolite/pkg/mtrf"
)

var bridgeCapture string

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge configured devices and sensors to MQTT",
	Long: `Run an MQTT bridge for the devices and sensors in the config file.

Topics (under mqtt.topicPrefix):
  status                   online | offline (retained, last will)
  devices/<name>/set       commands: on, off, switch, read, tune_up, ...
                           or JSON {"action":"level","level":0.5}
  devices/<name>/state     result of the last command (retained)
  sensors/<name>           sensor readings
  events/<channel>         every event received from remotes and sensors

Link metrics are served for Prometheus when metrics.enabled is set, and
temperature/humidity readings are written to InfluxDB when influxdb.enabled
is set. The bridge exits when the transceiver connection is lost.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeCapture, "capture", "", "Append every frame to a capture file")
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []mtrf.Option
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, mtrf.WithMetrics(mtrf.NewMetrics(reg)))

		srv := serveMetrics(reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if bridgeCapture != "" {
		f, err := os.OpenFile(bridgeCapture, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		defer f.Close()
		opts = append(opts, mtrf.WithCapture(mtrf.NewCaptureWriter(f)))
	}

	ctl, adapter, connInfo, err := openController(opts...)
	if err != nil {
		return err
	}
	defer ctl.Close()
	logger.Info("transceiver connected", zap.String("connection", connInfo))

	client, err := bridge.Dial(cfg.MQTT, logger.Named("mqtt"))
	if err != nil {
		return err
	}
	defer client.Close()

	var bridgeOpts []bridge.Option
	if cfg.InfluxDB.Enabled {
		writer, err := telemetry.Connect(cfg.InfluxDB, logger.Named("influxdb"))
		if err != nil {
			return err
		}
		defer writer.Close()
		bridgeOpts = append(bridgeOpts, bridge.WithTelemetry(writer))
	}

	b, err := bridge.New(ctl, client, cfg, logger.Named("bridge"), bridgeOpts...)
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-adapter.Lost():
			logger.Error("transceiver connection lost", zap.Error(adapter.Err()))
			stop()
		case <-ctx.Done():
		}
	}()

	runErr := b.Run(ctx)
	fmt.Print(adapter.Stats())
	if runErr != nil {
		return runErr
	}
	if err := adapter.Err(); err != nil {
		return fmt.Errorf("%w: %w", mtrf.ErrConnectionLost, err)
	}
	logger.Info("bridge stopped")
	return nil
}

func serveMetrics(reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
