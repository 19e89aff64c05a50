package orchestrator

import (
	"io"

	"github.com/core-tools/hsu-stack/pkg/config"
	"github.com/core-tools/hsu-stack/pkg/engine"
	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
	"github.com/core-tools/hsu-stack/pkg/process"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

// NewFromConfig wires an Orchestrator with the real launcher, resolver,
// container engine and cluster. console receives foreground command output.
func NewFromConfig(cfg *config.Config, reporter Reporter, console io.Writer, logger logging.Logger) (*Orchestrator, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	registry, err := topology.NewRegistry(cfg.TopologyConfig(), cfg.Orchestrator.RootDir)
	if err != nil {
		return nil, errors.NewValidationError("invalid topology", err)
	}

	launcher, err := process.NewExecLauncher(process.LauncherConfig{
		Strategy:     cfg.Launcher.Strategy,
		LogDirectory: cfg.LogDirectory(),
		Stdout:       console,
		Stderr:       console,
	}, logging.WithPrefix(logger, "launcher , "))
	if err != nil {
		return nil, errors.NewValidationError("invalid launcher configuration", err)
	}

	resolver := process.NewTreeResolver(process.ResolverConfig{
		Timeout: cfg.Orchestrator.ResolveTimeout,
	}, nil, logging.WithPrefix(logger, "resolver , "))

	runner := engine.NewExecRunner(console, logger)

	containerEngine := engine.NewContainerEngine(engine.ContainerEngineConfig{
		Command:        cfg.ContainerEngine.Command,
		ComposeCommand: cfg.ContainerEngine.ComposeCommand,
		Network:        cfg.ContainerEngine.Network,
		RootDirectory:  cfg.Orchestrator.RootDir,
	}, runner, logging.WithPrefix(logger, "engine , "))

	cluster := engine.NewCluster(engine.ClusterConfig{
		Command:    cfg.Cluster.Command,
		Namespace:  cfg.Cluster.Namespace,
		Kubeconfig: cfg.Cluster.Kubeconfig,
		Context:    cfg.Cluster.Context,
	}, runner, nil, logging.WithPrefix(logger, "cluster , "))

	manifests := make([]Manifest, 0, len(cfg.Cluster.Manifests))
	for _, manifest := range cfg.Cluster.Manifests {
		manifests = append(manifests, Manifest{Name: manifest.Name, File: cfg.ResolvePath(manifest.File)})
	}

	options := Options{
		GracefulTimeout: cfg.Orchestrator.GracefulTimeout,
		DataInit: DataInitOptions{
			ContainerFilter: cfg.DataInit.ContainerFilter,
			Command:         cfg.DataInit.Command,
			Script:          cfg.ResolvePath(cfg.DataInit.Script),
		},
		Cluster: ClusterOptions{
			InitConfigMap:  cfg.Cluster.InitConfigMap,
			InitScript:     cfg.ResolvePath(cfg.DataInit.Script),
			RolloutWait:    cfg.Cluster.RolloutWait,
			GatewayService: cfg.Cluster.GatewayService,
			Manifests:      manifests,
		},
		Images: cfg.Images,
	}

	return New(options, Dependencies{
		Registry: registry,
		Launcher: launcher,
		Resolver: resolver,
		Engine:   containerEngine,
		Cluster:  cluster,
		Reporter: reporter,
		Logger:   logger,
	})
}
