package engine

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
)

// ContainerEngineConfig names the container CLI and compose tool.
type ContainerEngineConfig struct {
	Command        []string
	ComposeCommand []string

	// Network is created on demand for the infrastructure containers.
	// Empty disables network management.
	Network string

	// RootDirectory is where compose runs and where the shared Dockerfile
	// lives.
	RootDirectory string

	// ImageRepository prefixes built image tags: <repository>/<name>:latest.
	ImageRepository string
}

func DefaultContainerEngineConfig() ContainerEngineConfig {
	return ContainerEngineConfig{
		Command:         []string{"docker"},
		ComposeCommand:  []string{"docker-compose"},
		Network:         "mxshop-net",
		ImageRepository: "shop",
	}
}

// ImageSpec describes one image built from the shared Dockerfile.
type ImageSpec struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	Main string `yaml:"main"`
}

// ContainerEngine wraps the container CLI. Every method maps to a single
// CLI invocation, apart from EnsureNetwork which may need two.
type ContainerEngine struct {
	config ContainerEngineConfig
	runner Runner
	logger logging.Logger
}

func NewContainerEngine(config ContainerEngineConfig, runner Runner, logger logging.Logger) *ContainerEngine {
	defaults := DefaultContainerEngineConfig()
	if len(config.Command) == 0 {
		config.Command = defaults.Command
	}
	if len(config.ComposeCommand) == 0 {
		config.ComposeCommand = defaults.ComposeCommand
	}
	if config.ImageRepository == "" {
		config.ImageRepository = defaults.ImageRepository
	}
	return &ContainerEngine{
		config: config,
		runner: runner,
		logger: logger,
	}
}

func (e *ContainerEngine) engine(args ...string) Command {
	return Command{Args: append(append([]string{}, e.config.Command...), args...)}
}

func (e *ContainerEngine) compose(args ...string) Command {
	return Command{
		Args: append(append([]string{}, e.config.ComposeCommand...), args...),
		Dir:  e.config.RootDirectory,
		Echo: true,
	}
}

// Available reports whether the engine daemon answers.
func (e *ContainerEngine) Available(ctx context.Context) error {
	if _, err := e.runner.Run(ctx, e.engine("info")); err != nil {
		return errors.NewProcessError("container engine is not reachable", err)
	}
	return nil
}

// EnsureNetwork creates the configured network unless it already exists.
func (e *ContainerEngine) EnsureNetwork(ctx context.Context) error {
	name := e.config.Network
	if name == "" {
		return nil
	}

	result, err := e.runner.Run(ctx, e.engine("network", "ls", "--filter", "name="+name, "--format", "{{.Name}}"))
	if err != nil {
		return errors.NewProcessError("failed to list networks", err).WithContext("network", name)
	}
	for _, line := range splitLines(result.Stdout) {
		if line == name {
			e.logger.Debugf("Network already exists, network: %s", name)
			return nil
		}
	}

	if _, err := e.runner.Run(ctx, e.engine("network", "create", name)); err != nil {
		return errors.NewProcessError("failed to create network", err).WithContext("network", name)
	}
	e.logger.Infof("Created network, network: %s", name)
	return nil
}

// ContainerRunning reports whether a running container's name contains name.
func (e *ContainerEngine) ContainerRunning(ctx context.Context, name string) (bool, error) {
	result, err := e.runner.Run(ctx, e.engine("ps", "--filter", "name="+name, "--format", "{{.Names}}"))
	if err != nil {
		return false, errors.NewProcessError("failed to list containers", err).WithContext("container", name)
	}
	for _, line := range splitLines(result.Stdout) {
		if strings.Contains(line, name) {
			return true, nil
		}
	}
	return false, nil
}

// FindContainerID returns the id of the first running container matching
// filter.
func (e *ContainerEngine) FindContainerID(ctx context.Context, filter string) (string, error) {
	result, err := e.runner.Run(ctx, e.engine("ps", "-qf", "name="+filter))
	if err != nil {
		return "", errors.NewProcessError("failed to list containers", err).WithContext("filter", filter)
	}
	ids := splitLines(result.Stdout)
	if len(ids) == 0 {
		return "", errors.NewNotFoundError("no running container matches filter", nil).WithContext("filter", filter)
	}
	return ids[0], nil
}

// ExecWithInput runs command inside the container with input on stdin.
func (e *ContainerEngine) ExecWithInput(ctx context.Context, containerID string, command []string, input []byte) (Result, error) {
	cmd := e.engine(append([]string{"exec", "-i", containerID}, command...)...)
	cmd.Stdin = bytes.NewReader(input)
	result, err := e.runner.Run(ctx, cmd)
	if err != nil {
		return result, errors.NewProcessError("container exec failed", err).WithContext("container", containerID)
	}
	return result, nil
}

// ComposeUp starts the given compose services, or all of them.
func (e *ContainerEngine) ComposeUp(ctx context.Context, services ...string) error {
	if _, err := e.runner.Run(ctx, e.compose(append([]string{"up", "-d"}, services...)...)); err != nil {
		return errors.NewProcessError("compose up failed", err)
	}
	return nil
}

func (e *ContainerEngine) ComposeDown(ctx context.Context) error {
	if _, err := e.runner.Run(ctx, e.compose("down")); err != nil {
		return errors.NewProcessError("compose down failed", err)
	}
	return nil
}

// ComposePS returns the compose status table as printed by the tool.
func (e *ContainerEngine) ComposePS(ctx context.Context) (string, error) {
	cmd := e.compose("ps")
	cmd.Echo = false
	result, err := e.runner.Run(ctx, cmd)
	if err != nil {
		return "", errors.NewProcessError("compose ps failed", err)
	}
	return result.Stdout, nil
}

// ImageTag returns the tag BuildImage gives image.
func (e *ContainerEngine) ImageTag(image ImageSpec) string {
	return e.config.ImageRepository + "/" + image.Name + ":latest"
}

// BuildImage builds image from the shared Dockerfile in the root directory.
func (e *ContainerEngine) BuildImage(ctx context.Context, image ImageSpec) error {
	root := e.config.RootDirectory
	cmd := e.engine(
		"build",
		"-t", e.ImageTag(image),
		"-f", filepath.Join(root, "Dockerfile"),
		"--build-arg", "SERVICE_PATH="+image.Main,
		"--build-arg", "SERVICE_NAME="+image.Name,
		filepath.Join(root, image.Path),
	)
	cmd.Echo = true
	if _, err := e.runner.Run(ctx, cmd); err != nil {
		return errors.NewProcessError("image build failed", err).WithContext("image", image.Name)
	}
	return nil
}

func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
