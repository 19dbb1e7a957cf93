package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lolmeida/kstack/internal/api"
	"github.com/lolmeida/kstack/internal/config"
	"github.com/lolmeida/kstack/internal/deploy"
	"github.com/lolmeida/kstack/internal/events"
	"github.com/lolmeida/kstack/internal/logging"
	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/metrics"
	"github.com/lolmeida/kstack/internal/service"
	"github.com/lolmeida/kstack/internal/store"
)

var servePort int

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve values documents and deployments over HTTP.

Endpoints:
  GET    /healthz
  GET    /metrics
  GET    /api/v1/environments
  GET    /api/v1/environments/{envID}/stacks/{stack}/values   (?format=yaml)
  POST   /api/v1/environments/{envID}/stacks/{stack}/deploy
  POST   /api/v1/cache/clear
  DELETE /api/v1/cache/categories/{category}

Requests under /api require X-API-Key when KSTACK_API_TOKEN is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides KSTACK_PORT)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	log, err := logging.NewLogger("kstack", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	server := newServer(cfg, s, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.Addr()) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// newServer wires the API over s. Deploys through the API take the
// per-stack file lock like CLI deploys do.
func newServer(cfg *config.Config, s store.ConfigStore, log *zap.Logger) *api.Server {
	m := metrics.New()
	builder := manifest.NewBuilder(s, nil)

	var secrets deploy.SecretsDecryptor
	if len(cfg.SecretsFiles) > 0 {
		secrets = deploy.NewSOPSOps(deploy.ExecRunner{})
	}
	orch := deploy.NewOrchestrator(s,
		deploy.DefaultStrategies(deployConfig(cfg), builder, deploy.ExecRunner{}, secrets),
		deploy.WithLogger(log.Named("deploy")),
	)

	em := events.NewManager()
	em.AddSink(events.NewLogSink(log.Named("events")))
	em.AddSink(events.NewWebhookSink(cfg.WebhookURL, cfg.WebhookFormat))

	svc := service.New(s, builder, orch,
		service.WithEvents(em),
		service.WithMetrics(m),
		service.WithLogger(log.Named("service")),
		service.WithStateDir(cfg.StateDir),
	)
	return api.NewServer(svc,
		api.WithMetrics(m),
		api.WithLogger(log.Named("http")),
		api.WithAPIToken(cfg.APIToken),
	)
}
