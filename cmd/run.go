package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sszokoly/sipcounter/internal/config"
	"github.com/sszokoly/sipcounter/internal/core"
	"github.com/sszokoly/sipcounter/internal/counter"
	"github.com/sszokoly/sipcounter/internal/log"
	"github.com/sszokoly/sipcounter/internal/metrics"
	"github.com/sszokoly/sipcounter/internal/report"
	"github.com/sszokoly/sipcounter/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a counting session",
	Long: `
Run a counting session: consume messages from the configured source,
tally them per link and direction, and print the report table on every
interval tick and once more at the end of the stream.

Examples:
  sipcounter run                            # defaults, messages from stdin
  sipcounter run -c sipcounter.yml          # settings from sipcounter.yml
  SIPCOUNTER_SOURCE_TYPE=gen sipcounter run # synthetic traffic
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return runSession(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSession(cfg *config.Config) error {
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	cnt := counter.New(counter.Config{
		Name:         cfg.Name,
		SIPFilter:    cfg.SIPFilter,
		HostFilter:   cfg.HostFilter,
		HostExclude:  cfg.HostExclude,
		KnownServers: cfg.KnownServers,
		KnownPorts:   cfg.KnownPorts,
		DefaultProto: cfg.DefaultProto,
		CountClasses: cfg.CountClasses,
		TrackDialogs: cfg.TrackDialogs,
	})

	src, err := source.New(cfg.Source)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := src.Start(ctx); err != nil {
		return err
	}
	defer src.Close()

	var collector *metrics.Collector
	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		reg := prometheus.NewRegistry()
		collector.MustRegister(reg)
		metricsSrv = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, reg)
		if err := metricsSrv.Start(ctx); err != nil {
			return err
		}
	}

	msgs := make(chan core.Message, 256)
	prodErr := make(chan error, 1)
	go func() {
		defer close(msgs)
		for {
			msg, err := src.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					prodErr <- err
				}
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(cfg.Report.IntervalDuration())
	defer ticker.Stop()

	render := func() {
		groups := cnt.MostCommon(cfg.Report.Top, cfg.Report.Depth)
		opts := report.DefaultOptions(cnt.Name())
		opts.Title = time.Now().Format("2006-01-02 15:04:05")
		if out := report.Render(groups, opts); out != "" {
			fmt.Print(out)
		}
		if collector != nil {
			collector.Update(cnt.Snapshot())
		}
	}

	log.WithField("source", cfg.Source.Type).Info("counting started")

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-prodErr:
			runErr = err
			break loop
		case msg, ok := <-msgs:
			if !ok {
				break loop
			}
			if err := cnt.Add(msg); err != nil {
				log.WithError(err).Debug("message skipped")
			}
		case <-ticker.C:
			render()
		}
	}

	render()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Stop(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics server shutdown failed")
		}
	}

	log.WithField("total", cnt.Total()).Info("counting finished")
	return runErr
}
