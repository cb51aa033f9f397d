package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/yafatek/mxp-agents-runtime/internal/meshadapter"
	"github.com/yafatek/mxp-agents-runtime/internal/meshaudit"
	"github.com/yafatek/mxp-agents-runtime/internal/meshconfig"
	"github.com/yafatek/mxp-agents-runtime/internal/meshexec"
	"github.com/yafatek/mxp-agents-runtime/internal/meshkernel"
	"github.com/yafatek/mxp-agents-runtime/internal/meshlifecycle"
	"github.com/yafatek/mxp-agents-runtime/internal/meshmemory"
	"github.com/yafatek/mxp-agents-runtime/internal/meshmemory/journalstore"
	"github.com/yafatek/mxp-agents-runtime/internal/meshpolicy"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/meshregistration"
	"github.com/yafatek/mxp-agents-runtime/internal/meshregistration/directoryclient"
	"github.com/yafatek/mxp-agents-runtime/internal/meshscheduler"
	"github.com/yafatek/mxp-agents-runtime/internal/meshtools"
	"github.com/yafatek/mxp-agents-runtime/internal/obs"
	"github.com/yafatek/mxp-agents-runtime/internal/transport/grpcmesh"
)

// runtime bundles every constructed collaborator a meshagent process needs,
// so the serve command can start transports and tear everything down on
// shutdown without threading a dozen separate values around.
type runtime struct {
	kernel      *meshkernel.Kernel
	scheduler   *meshscheduler.Scheduler
	metrics     *obs.Metrics
	logger      *obs.Logger
	tracerClose func(context.Context) error
	journal     meshmemory.Journal
	grpcServer  *grpcmesh.Server
	registry    *prometheus.Registry
}

func buildRuntime(ctx context.Context, cfg *meshconfig.Config) (*runtime, error) {
	logger := obs.NewLogger(obs.LogConfig{Level: cfg.Observability.LogLevel, Format: cfg.Observability.LogFormat})

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	var tracerClose func(context.Context) error
	var tracer *obs.Tracer
	if cfg.Observability.TracingEndpoint != "" {
		t, closeFn, err := obs.NewTracer(ctx, obs.TraceConfig{
			ServiceName:    cfg.Agent.Name,
			ServiceVersion: cfg.Agent.Version,
			Environment:    "production",
			Endpoint:       cfg.Observability.TracingEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("construct tracer: %w", err)
		}
		tracer, tracerClose = t, closeFn
	}

	adapter, err := buildAdapter(ctx, cfg.Adapter)
	if err != nil {
		return nil, fmt.Errorf("construct model adapter: %w", err)
	}

	journal, err := buildJournal(ctx, cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("construct memory journal: %w", err)
	}
	memoryBus, err := meshmemory.NewMemoryBusBuilder(meshmemory.VolatileConfig{Capacity: cfg.Memory.VolatileCapacity}).WithJournal(journal).Build()
	if err != nil {
		return nil, fmt.Errorf("construct memory bus: %w", err)
	}

	policyEngine, err := buildPolicyEngine(cfg.Policy, logger)
	if err != nil {
		return nil, fmt.Errorf("construct policy engine: %w", err)
	}

	toolRegistry := meshtools.NewToolRegistry()

	scheduler := meshscheduler.New(meshscheduler.Config{MaxConcurrency: cfg.Scheduler.MaxConcurrency})

	agentID := meshprimitives.RandomAgentID()

	audit := meshaudit.NewCompositeObserver()
	audit.Register(meshaudit.NewTracingEmitter(logger))

	executor := meshexec.NewCallExecutor(adapter, toolRegistry, policyEngine, audit, memoryBus, metrics, tracer, logger)
	sink := meshexec.NewLoggingSink(logger)
	handler := meshexec.NewKernelMessageHandler(executor, sink)

	grpcServer := grpcmesh.NewServer(handler)

	var registrationController *meshregistration.Controller
	if cfg.Directory.BaseURL != "" {
		directory := directoryclient.New(directoryclient.Config{
			BaseURL:          cfg.Directory.BaseURL,
			ClientID:         cfg.Directory.ClientID,
			ClientSecret:     cfg.Directory.ClientSecret,
			TokenURL:         cfg.Directory.TokenURL,
			SigningKey:       []byte(cfg.Directory.SigningKey),
			IdentityTokenTTL: cfg.Directory.IdentityTokenTTL,
		})
		manifest, err := meshprimitives.NewAgentManifestBuilder(agentID).Name(cfg.Agent.Name)
		if err != nil {
			return nil, fmt.Errorf("build agent manifest: %w", err)
		}
		manifestWithVersion, err := manifest.Version(cfg.Agent.Version)
		if err != nil {
			return nil, fmt.Errorf("build agent manifest: %w", err)
		}
		builtManifest, err := manifestWithVersion.Build()
		if err != nil {
			return nil, fmt.Errorf("build agent manifest: %w", err)
		}
		registrationController = meshregistration.New(directory, builtManifest, meshregistration.Config{
			HeartbeatInterval:      cfg.Directory.HeartbeatInterval,
			InitialRetryDelay:      meshregistration.DefaultConfig().InitialRetryDelay,
			MaxRetryDelay:          meshregistration.DefaultConfig().MaxRetryDelay,
			MaxConsecutiveFailures: meshregistration.DefaultConfig().MaxConsecutiveFailures,
		}, logger)
	}

	kernel := meshkernel.New(agentID, handler, scheduler, registrationController, logger)

	return &runtime{
		kernel:      kernel,
		scheduler:   scheduler,
		metrics:     metrics,
		logger:      logger,
		tracerClose: tracerClose,
		journal:     journal,
		grpcServer:  grpcServer,
		registry:    registry,
	}, nil
}

func buildAdapter(ctx context.Context, cfg meshconfig.AdapterConfig) (meshadapter.ModelAdapter, error) {
	switch cfg.Provider {
	case "openai":
		return meshadapter.NewOpenAIAdapter(cfg.APIKey, cfg.Model), nil
	case "anthropic":
		return meshadapter.NewAnthropicAdapter(cfg.APIKey, cfg.Model), nil
	case "bedrock":
		return meshadapter.NewBedrockAdapter(ctx, cfg.Region, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported adapter provider %q", cfg.Provider)
	}
}

func buildJournal(ctx context.Context, cfg meshconfig.MemoryConfig) (meshmemory.Journal, error) {
	switch cfg.JournalDriver {
	case "file":
		path := cfg.JournalDSN
		if path == "" {
			path = "meshagent-journal.jsonl"
		}
		return meshmemory.OpenFileJournal(path)
	case "sqlite":
		sqliteCfg := journalstore.DefaultSQLiteConfig()
		if cfg.JournalDSN != "" {
			sqliteCfg.Path = cfg.JournalDSN
		}
		return journalstore.OpenSQLiteJournal(ctx, sqliteCfg)
	case "postgres":
		pgCfg := journalstore.DefaultPostgresConfig()
		if cfg.JournalDSN != "" {
			pgCfg.Database = cfg.JournalDSN
		}
		return journalstore.OpenPostgresJournal(ctx, pgCfg)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", cfg.JournalDriver)
	}
}

func buildPolicyEngine(cfg meshconfig.PolicyConfig, logger *obs.Logger) (meshpolicy.PolicyEngine, error) {
	switch cfg.Mode {
	case "allow_all":
		return meshpolicy.NewRuleBasedEngine(meshpolicy.Allow(), logger), nil
	case "rule_based":
		return meshpolicy.NewRuleBasedEngine(meshpolicy.Allow(), logger), nil
	case "remote":
		client := meshpolicy.NewHTTPGovernanceClient(meshpolicy.HTTPGovernanceConfig{BaseURL: cfg.RemoteURL})
		return meshpolicy.NewRemotePolicyEngine(client), nil
	default:
		return nil, fmt.Errorf("unsupported policy mode %q", cfg.Mode)
	}
}

func (r *runtime) boot(ctx context.Context) error {
	_, err := r.kernel.Transition(ctx, meshlifecycle.EventBoot)
	return err
}

func (r *runtime) serveGRPC(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	server := grpc.NewServer()
	r.grpcServer.RegisterServer(server)
	r.logger.Info(ctx, "grpc mesh transport listening", "addr", addr)
	return server.Serve(listener)
}

func (r *runtime) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	r.logger.Info(ctx, "metrics endpoint listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func (r *runtime) shutdown(ctx context.Context) {
	r.scheduler.Close()
	r.scheduler.Wait()
	if closer, ok := r.journal.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if r.tracerClose != nil {
		_ = r.tracerClose(ctx)
	}
}
