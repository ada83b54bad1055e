package main

import (
	"context"
	"flag"
	stdlog "log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/fleet-coordinator/pkg/api"
	"github.com/telekom/fleet-coordinator/pkg/audit"
	"github.com/telekom/fleet-coordinator/pkg/config"
	"github.com/telekom/fleet-coordinator/pkg/consensus"
	"github.com/telekom/fleet-coordinator/pkg/handover"
	"github.com/telekom/fleet-coordinator/pkg/metrics"
	"github.com/telekom/fleet-coordinator/pkg/notify"
	"github.com/telekom/fleet-coordinator/pkg/registry"
	"github.com/telekom/fleet-coordinator/pkg/resolver"
	"github.com/telekom/fleet-coordinator/pkg/role"
	"github.com/telekom/fleet-coordinator/pkg/signer"
	"github.com/telekom/fleet-coordinator/pkg/version"
)

func main() {
	var (
		debug      bool
		configPath string
	)
	flag.BoolVar(&debug, "debug", false, "enable debug level logging")
	flag.StringVar(&configPath, "config", "", "path to the fleetd config file")
	flag.Parse()

	zl := setupLogger(debug)
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting fleetd")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading fleetd config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid fleetd config: %v", err)
	}

	sig, err := signer.New(cfg.Federation.Secret)
	if err != nil {
		log.Fatalf("Error initializing signer: %v", err)
	}

	reg := registry.New()
	roles := role.NewStore(cfg.Node.ID, log)

	auditor := buildAuditor(log, cfg)
	notifier := notify.NewService(cfg.Mail, cfg.Node.ID, cfg.Node.Environment, log)

	// workload runtime and handover
	kubeClient, err := handover.NewKubernetesClient(cfg.Kubernetes.Context)
	if err != nil {
		log.Fatalf("Error building kubernetes client: %v", err)
	}
	runtime := handover.NewKubernetesRuntime(log, kubeClient, cfg.Kubernetes.Namespace)
	manager := handover.NewManager(log, runtime, auditor, cfg.Node.ID, cfg.Node.Environment, cfg.Handover.Mode, cfg.DrainTimeout())

	// role transitions drive handover, audit and notifications
	roles.Subscribe(func(event role.Event, state role.State) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.DrainTimeout())
		defer cancel()

		switch event {
		case role.EventPromoted:
			metrics.IsLeader.Set(1)
			auditor.LeaderElected(state.LeaseToken)
			notifier.NotifyPromoted(state.LeaseToken)
			if err := manager.OnPromoted(ctx); err != nil {
				log.Warnw("Adoption failed, will retry on next transition", "error", err)
			}
		case role.EventDemoted:
			metrics.IsLeader.Set(0)
			auditor.LeaderLost(state.LeaderID)
			notifier.NotifyDemoted(state.LeaderID)
			if err := manager.OnDemoted(ctx); err != nil {
				log.Warnw("Release failed, will retry on next transition", "error", err)
			}
		}
		metrics.RoleTransitions.WithLabelValues(string(event)).Inc()
	})

	server := api.NewServer(zl, cfg, debug)

	controllers := []api.APIController{
		api.NewNodeController(log, cfg, roles, reg, sig, auditor, manager),
	}

	resolverURL := cfg.Resolver.URL
	if cfg.Resolver.Embedded {
		// host the resolver in-process and point the coordinator at it
		controllers = append(controllers, resolver.NewController(log, resolver.NewMemoryStore(), reg, sig))
		if resolverURL == "" {
			resolverURL = localURL(cfg.Server.ListenAddress)
		}
		log.Infow("Embedded resolver enabled", "url", resolverURL)
	}

	if err := server.RegisterAll(controllers); err != nil {
		log.Fatalf("Error registering controllers: %v", err)
	}

	client := resolver.NewClient(resolverURL, cfg.ResolverRequestTimeout(), log)
	coordinator := consensus.New(log, client, reg, roles, sig, consensus.Options{
		SelfID:            cfg.Node.ID,
		HeartbeatInterval: cfg.HeartbeatInterval(),
		ElectionInterval:  cfg.ElectionInterval(),
		PollInterval:      cfg.LeaderPollInterval(),
		StaleThreshold:    cfg.StalePeerThreshold(),
		RequestTimeout:    cfg.ResolverRequestTimeout(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	auditor.SystemStartup(version.Version)

	go coordinator.Run(ctx)
	go func() {
		if err := server.Listen(); err != nil {
			log.Errorw("HTTP server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down fleetd")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP server shutdown failed", "error", err)
	}

	auditor.SystemShutdown()
	notifier.Wait()
	if err := auditor.Close(); err != nil {
		log.Warnw("Audit shutdown failed", "error", err)
	}
}

func buildAuditor(log *zap.SugaredLogger, cfg config.Config) *audit.Service {
	sinks := []audit.Sink{audit.NewLogSink(log.Desugar())}

	if cfg.Audit.Kafka.Enabled {
		kafkaSink, err := audit.NewKafkaSink(audit.KafkaSinkConfig{
			Brokers: cfg.Audit.Kafka.Brokers,
			Topic:   cfg.Audit.Kafka.Topic,
		}, log.Desugar())
		if err != nil {
			log.Fatalf("Error creating kafka audit sink: %v", err)
		}
		sinks = append(sinks, kafkaSink)
	}

	if len(sinks) == 1 {
		return audit.NewService(sinks[0], cfg.Node.ID, log.Desugar())
	}
	return audit.NewService(audit.NewMultiSink(sinks, log.Desugar()), cfg.Node.ID, log.Desugar())
}

// localURL turns a listen address like ":8470" into a loopback base URL for
// the embedded resolver.
func localURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://127.0.0.1" + listen
	}
	return "http://" + listen
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
