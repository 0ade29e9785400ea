package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldmesh/agentreg/internal/clock"
	"github.com/fieldmesh/agentreg/internal/config"
	"github.com/fieldmesh/agentreg/internal/logging"
	"github.com/fieldmesh/agentreg/internal/metrics"
	"github.com/fieldmesh/agentreg/pkg/agent"
	"github.com/fieldmesh/agentreg/pkg/client"
	"github.com/fieldmesh/agentreg/pkg/registry"
	"github.com/fieldmesh/agentreg/pkg/resolver"
	"github.com/fieldmesh/agentreg/pkg/transport"
	"github.com/fieldmesh/agentreg/pkg/wire"
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
		Use:          "agent",
		Short:        "Runs a check-in agent process against a domain registry.",
		RunE:         runRoot,
		SilenceUsage: true,
	}

	cmd.Flags().String("type", config.EnvOrDefault("AGENTREG_TYPE", "interactive"), "agent type: domain, interactive, audiomixer, avatarmixer, voxelserver")
	cmd.Flags().String("domain-host", config.EnvOrDefault("AGENTREG_DOMAIN_HOST", "localhost"), "domain registry hostname")
	cmd.Flags().Int("domain-port", 40102, "domain registry UDP port")
	cmd.Flags().Int("listen-port", 40103, "local UDP port to bind")
	cmd.Flags().String("interest", config.EnvOrDefault("AGENTREG_INTEREST", ""), "comma-separated agent types to request in replies")
	cmd.Flags().String("log-level", config.EnvOrDefault("AGENTREG_LOG_LEVEL", "info"), "log level: debug, info, warn, error")

	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	typeName, err := flags.GetString("type")
	if err != nil {
		return err
	}
	domainHost, err := flags.GetString("domain-host")
	if err != nil {
		return err
	}
	domainPort, err := flags.GetInt("domain-port")
	if err != nil {
		return err
	}
	listenPort, err := flags.GetInt("listen-port")
	if err != nil {
		return err
	}
	interestCSV, err := flags.GetString("interest")
	if err != nil {
		return err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return err
	}

	agentType, err := config.ParseAgentType(typeName)
	if err != nil {
		return err
	}
	interest, err := config.ParseInterestList(interestCSV)
	if err != nil {
		return err
	}

	logger := logging.New(logging.ParseLevel(logLevel))

	tr, err := transport.Listen(listenPort)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	defer tr.Close()

	localAddr := tr.LocalAddr()
	localIP, err := transport.LocalIPv4()
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	localSocket, err := wire.SocketFromUDP(&net.UDPAddr{IP: localIP, Port: localAddr.Port})
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	clk := clock.New()
	m := metrics.Noop()
	members := registry.New(clk, m, tr)
	members.SetOwner(agentType, wire.UnknownAgentID)
	res := resolver.New(members, tr, logger)
	c := client.New(tr, members, res, clk, m, logger, agent.FactoryFunc(newHeadDataPayload), client.Config{
		Type:        agentType,
		LocalSocket: localSocket,
		Interest:    interest,
		DomainHost:  domainHost,
		DomainPort:  domainPort,
	})

	logger.Info("agent: starting", "type", agentType.String(), "local", localSocket.String(), "domain", fmt.Sprintf("%s:%d", domainHost, domainPort))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.RunCheckIns(gctx) })
	g.Go(func() error { return c.RunReceive(gctx) })
	g.Go(func() error { return res.Run(gctx) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}
