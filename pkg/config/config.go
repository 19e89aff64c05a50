// Package config loads the orchestrator's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/core-tools/hsu-stack/pkg/engine"
	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/process"
	"github.com/core-tools/hsu-stack/pkg/topology"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file structure.
type Config struct {
	Orchestrator    OrchestratorOptions    `yaml:"orchestrator"`
	Launcher        LauncherOptions        `yaml:"launcher"`
	ContainerEngine ContainerEngineOptions `yaml:"container_engine"`
	DataInit        DataInitOptions        `yaml:"data_init"`
	Cluster         ClusterOptions         `yaml:"cluster"`
	Images          []engine.ImageSpec     `yaml:"images"`
	Topology        *topology.Config       `yaml:"topology,omitempty"`
}

type OrchestratorOptions struct {
	// RootDir is the project root. Relative unit directories, compose and
	// manifests resolve against it.
	RootDir         string        `yaml:"root_dir"`
	LogDir          string        `yaml:"log_dir"`
	LogLevel        string        `yaml:"log_level,omitempty"`
	LogFormat       string        `yaml:"log_format,omitempty"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout,omitempty"`
	ResolveTimeout  time.Duration `yaml:"resolve_timeout,omitempty"`
	// MetricsTextfile, when set, receives run counters in the node
	// exporter textfile format.
	MetricsTextfile string `yaml:"metrics_textfile,omitempty"`
}

type LauncherOptions struct {
	Strategy process.Strategy `yaml:"strategy,omitempty"`
}

type ContainerEngineOptions struct {
	Command        []string `yaml:"command"`
	ComposeCommand []string `yaml:"compose_command"`
	Network        string   `yaml:"network"`
}

type DataInitOptions struct {
	ContainerFilter string   `yaml:"container_filter"`
	Command         []string `yaml:"command"`
	Script          string   `yaml:"script"`
}

type ClusterOptions struct {
	Command        []string       `yaml:"command"`
	Namespace      string         `yaml:"namespace"`
	Kubeconfig     string         `yaml:"kubeconfig,omitempty"`
	Context        string         `yaml:"context,omitempty"`
	InitConfigMap  string         `yaml:"init_configmap"`
	RolloutWait    time.Duration  `yaml:"rollout_wait"`
	GatewayService string         `yaml:"gateway_service"`
	Manifests      []ManifestSpec `yaml:"manifests"`
}

// ManifestSpec is one manifest file applied to the cluster. Manifests are
// applied in order and deleted in reverse.
type ManifestSpec struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns the configuration of the shop stack.
func DefaultConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorOptions{
			RootDir:         ".",
			LogDir:          "logs",
			LogLevel:        "info",
			LogFormat:       "console",
			GracefulTimeout: 5 * time.Second,
			ResolveTimeout:  5 * time.Second,
		},
		Launcher: LauncherOptions{
			Strategy: process.DefaultStrategy(),
		},
		ContainerEngine: ContainerEngineOptions{
			Command:        []string{"docker"},
			ComposeCommand: []string{"docker-compose"},
			Network:        "mxshop-net",
		},
		DataInit: DataInitOptions{
			ContainerFilter: "mysql",
			Command:         []string{"mysql", "-uroot", "-proot"},
			Script:          "scripts/init.sql",
		},
		Cluster: ClusterOptions{
			Command:        []string{"kubectl"},
			Namespace:      "shop-system",
			InitConfigMap:  "mysql-init-scripts",
			RolloutWait:    10 * time.Second,
			GatewayService: "shop-gateway",
			Manifests: []ManifestSpec{
				{Name: "infrastructure", File: "deploy/k8s/infrastructure/infrastructure.yaml"},
				{Name: "services", File: "deploy/k8s/services/services.yaml"},
				{Name: "web", File: "deploy/k8s/web/web.yaml"},
			},
		},
		Images: defaultImages(),
	}
}

func defaultImages() []engine.ImageSpec {
	var images []engine.ImageSpec
	for _, name := range []string{"user", "goods", "inventory", "order", "userop"} {
		images = append(images, engine.ImageSpec{
			Name: name + "-srv",
			Path: "shop_srv/" + name + "_srv",
			Main: "cmd/server/main.go",
		})
	}
	for _, name := range []string{"user", "goods", "order", "userop", "oss"} {
		images = append(images, engine.ImageSpec{
			Name: name + "-web",
			Path: "shop_web/" + name + "-web",
			Main: "main.go",
		})
	}
	return images
}

// LoadConfigFromFile reads filename over the defaults. Keys absent from the
// file keep their default values; a relative root_dir is taken relative to
// the file's directory.
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	if !filepath.IsAbs(config.Orchestrator.RootDir) {
		config.Orchestrator.RootDir = filepath.Join(filepath.Dir(filename), config.Orchestrator.RootDir)
	}
	return config, nil
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	setConfigDefaults(config)
	return config, nil
}

func setConfigDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Orchestrator.RootDir == "" {
		config.Orchestrator.RootDir = defaults.Orchestrator.RootDir
	}
	if config.Orchestrator.LogDir == "" {
		config.Orchestrator.LogDir = defaults.Orchestrator.LogDir
	}
	if config.Orchestrator.LogLevel == "" {
		config.Orchestrator.LogLevel = defaults.Orchestrator.LogLevel
	}
	if config.Orchestrator.LogFormat == "" {
		config.Orchestrator.LogFormat = defaults.Orchestrator.LogFormat
	}
	if config.Orchestrator.GracefulTimeout == 0 {
		config.Orchestrator.GracefulTimeout = defaults.Orchestrator.GracefulTimeout
	}
	if config.Orchestrator.ResolveTimeout == 0 {
		config.Orchestrator.ResolveTimeout = defaults.Orchestrator.ResolveTimeout
	}
	if config.Launcher.Strategy == "" {
		config.Launcher.Strategy = defaults.Launcher.Strategy
	}
	if len(config.ContainerEngine.Command) == 0 {
		config.ContainerEngine.Command = defaults.ContainerEngine.Command
	}
	if len(config.ContainerEngine.ComposeCommand) == 0 {
		config.ContainerEngine.ComposeCommand = defaults.ContainerEngine.ComposeCommand
	}
	if len(config.Cluster.Command) == 0 {
		config.Cluster.Command = defaults.Cluster.Command
	}
	if config.Cluster.Namespace == "" {
		config.Cluster.Namespace = defaults.Cluster.Namespace
	}
}

// ValidateConfig checks the whole configuration, including the topology.
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateOrchestratorOptions(&config.Orchestrator); err != nil {
		return errors.NewValidationError("invalid orchestrator configuration", err)
	}
	if err := process.ValidateStrategy(config.Launcher.Strategy); err != nil {
		return errors.NewValidationError("invalid launcher configuration", err)
	}
	if err := validateDataInit(&config.DataInit); err != nil {
		return errors.NewValidationError("invalid data_init configuration", err)
	}
	if err := validateCluster(&config.Cluster); err != nil {
		return errors.NewValidationError("invalid cluster configuration", err)
	}
	if err := validateImages(config.Images); err != nil {
		return errors.NewValidationError("invalid images configuration", err)
	}
	if _, err := topology.NewRegistry(config.TopologyConfig(), config.Orchestrator.RootDir); err != nil {
		return errors.NewValidationError("invalid topology configuration", err)
	}
	return nil
}

// TopologyConfig returns the configured topology, or the default one when
// the file has none.
func (c *Config) TopologyConfig() topology.Config {
	if c.Topology == nil || c.Topology.IsEmpty() {
		return topology.DefaultTopology()
	}
	return *c.Topology
}

// ResolvePath makes path absolute against the root directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Orchestrator.RootDir, path)
}

func (c *Config) LogDirectory() string {
	return c.ResolvePath(c.Orchestrator.LogDir)
}

func validateOrchestratorOptions(options *OrchestratorOptions) error {
	valid := false
	for _, level := range validLogLevels {
		if options.LogLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return errors.NewValidationError(
			fmt.Sprintf("invalid log level: %s", options.LogLevel),
			nil,
		).WithContext("valid_levels", "debug, info, warn, error")
	}

	if options.LogFormat != "console" && options.LogFormat != "json" {
		return errors.NewValidationError(
			fmt.Sprintf("invalid log format: %s", options.LogFormat),
			nil,
		).WithContext("valid_formats", "console, json")
	}

	if options.GracefulTimeout < 0 {
		return errors.NewValidationError("graceful_timeout cannot be negative", nil)
	}
	if options.ResolveTimeout < 0 {
		return errors.NewValidationError("resolve_timeout cannot be negative", nil)
	}
	return nil
}

func validateDataInit(options *DataInitOptions) error {
	if options.ContainerFilter == "" {
		return errors.NewValidationError("container_filter is required", nil)
	}
	if len(options.Command) == 0 {
		return errors.NewValidationError("command is required", nil)
	}
	if options.Script == "" {
		return errors.NewValidationError("script is required", nil)
	}
	return nil
}

func validateCluster(options *ClusterOptions) error {
	if options.RolloutWait < 0 {
		return errors.NewValidationError("rollout_wait cannot be negative", nil)
	}
	seen := make(map[string]int)
	for i, manifest := range options.Manifests {
		if manifest.Name == "" || manifest.File == "" {
			return errors.NewValidationError(
				fmt.Sprintf("manifest at index %d needs a name and a file", i),
				nil,
			)
		}
		if prev, exists := seen[manifest.Name]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate manifest '%s' found at indices %d and %d", manifest.Name, prev, i),
				nil,
			)
		}
		seen[manifest.Name] = i
	}
	return nil
}

func validateImages(images []engine.ImageSpec) error {
	seen := make(map[string]int)
	for i, image := range images {
		if err := topology.ValidateUnitName(image.Name); err != nil {
			return errors.NewValidationError(fmt.Sprintf("invalid image name at index %d", i), err)
		}
		if image.Path == "" || image.Main == "" {
			return errors.NewValidationError(
				fmt.Sprintf("image '%s' needs a path and a main", image.Name),
				nil,
			)
		}
		if prev, exists := seen[image.Name]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate image '%s' found at indices %d and %d", image.Name, prev, i),
				nil,
			)
		}
		seen[image.Name] = i
	}
	return nil
}
