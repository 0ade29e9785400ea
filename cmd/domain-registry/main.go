package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldmesh/agentreg/internal/clock"
	"github.com/fieldmesh/agentreg/internal/config"
	"github.com/fieldmesh/agentreg/internal/logging"
	"github.com/fieldmesh/agentreg/internal/metrics"
	"github.com/fieldmesh/agentreg/pkg/domainserver"
	"github.com/fieldmesh/agentreg/pkg/registry"
	"github.com/fieldmesh/agentreg/pkg/transport"
	"github.com/fieldmesh/agentreg/pkg/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "domain-registry",
		Short:        "Runs the domain registry's UDP rendezvous service.",
		RunE:         runRoot,
		SilenceUsage: true,
	}

	cmd.Flags().Int("listen-port", 40102, "UDP port to bind for check-ins")
	cmd.Flags().Bool("local", false, "disable the same-host source-address rewrite")
	cmd.Flags().String("public-ip", config.EnvOrDefault("AGENTREG_PUBLIC_IP", ""), "public IPv4 advertised for same-host senders")
	cmd.Flags().String("hostname", config.EnvOrDefault("AGENTREG_HOSTNAME", ""), "domain hostname this registry answers as (logging only)")
	cmd.Flags().String("log-level", config.EnvOrDefault("AGENTREG_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	cmd.Flags().String("metrics-addr", config.EnvOrDefault("AGENTREG_METRICS_ADDR", ":9102"), "address to serve Prometheus metrics on, empty to disable")

	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	listenPort, err := flags.GetInt("listen-port")
	if err != nil {
		return err
	}
	localMode, err := flags.GetBool("local")
	if err != nil {
		return err
	}
	publicIPStr, err := flags.GetString("public-ip")
	if err != nil {
		return err
	}
	hostname, err := flags.GetString("hostname")
	if err != nil {
		return err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return err
	}
	metricsAddr, err := flags.GetString("metrics-addr")
	if err != nil {
		return err
	}

	if !localMode && publicIPStr == "" {
		return fmt.Errorf("domain-registry: --public-ip is required unless --local is set")
	}
	var publicIP net.IP
	if publicIPStr != "" {
		publicIP = net.ParseIP(publicIPStr).To4()
		if publicIP == nil {
			return fmt.Errorf("domain-registry: %q is not a valid IPv4 address", publicIPStr)
		}
	}

	logger := logging.New(logging.ParseLevel(logLevel))

	localIP, err := transport.LocalIPv4()
	if err != nil && !localMode {
		return fmt.Errorf("domain-registry: determine local IPv4: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	tr, err := transport.Listen(listenPort)
	if err != nil {
		return fmt.Errorf("domain-registry: %w", err)
	}
	defer tr.Close()

	clk := clock.New()
	members := registry.New(clk, m, tr)
	members.SetOwner(wire.TypeDomain, wire.UnknownAgentID)
	reaper := registry.NewReaper(members, clk, m, logger, registry.SilenceThreshold)
	server := domainserver.New(tr, members, clk, m, logger, domainserver.Config{
		LocalMode:  localMode,
		LocalIPv4:  localIP,
		PublicIPv4: publicIP,
	})

	logger.Info("domain-registry: listening", "port", listenPort, "local", localMode, "hostname", hostname)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })

	if metricsAddr != "" {
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}
