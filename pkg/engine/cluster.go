package engine

import (
	"context"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
)

const managedByLabel = "app.kubernetes.io/managed-by"

// ClusterConfig selects the cluster, namespace and kubectl binary.
type ClusterConfig struct {
	Command    []string
	Namespace  string
	Kubeconfig string
	Context    string
	// Timeout bounds API requests made through the clientset.
	Timeout time.Duration
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		Command:   []string{"kubectl"},
		Namespace: "shop-system",
		Timeout:   30 * time.Second,
	}
}

// ClientsetFactory builds the clientset on first use.
type ClientsetFactory func(config ClusterConfig) (kubernetes.Interface, error)

// Cluster manages objects the orchestrator owns in one namespace. Typed
// objects go through client-go; manifest files go through kubectl.
type Cluster struct {
	config     ClusterConfig
	runner     Runner
	newClients ClientsetFactory
	logger     logging.Logger

	clientsOnce sync.Once
	clients     kubernetes.Interface
	clientsErr  error
}

func NewCluster(config ClusterConfig, runner Runner, newClients ClientsetFactory, logger logging.Logger) *Cluster {
	defaults := DefaultClusterConfig()
	if len(config.Command) == 0 {
		config.Command = defaults.Command
	}
	if config.Namespace == "" {
		config.Namespace = defaults.Namespace
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if newClients == nil {
		newClients = NewClientsetFromKubeconfig
	}
	return &Cluster{
		config:     config,
		runner:     runner,
		newClients: newClients,
		logger:     logger,
	}
}

// NewClientsetFromKubeconfig loads the kubeconfig the same way kubectl
// does, honoring an explicit path and context override.
func NewClientsetFromKubeconfig(config ClusterConfig) (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if config.Kubeconfig != "" {
		loadingRules.ExplicitPath = config.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: config.Context}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, err
	}
	restConfig.Timeout = config.Timeout

	return kubernetes.NewForConfig(restConfig)
}

func (c *Cluster) Namespace() string {
	return c.config.Namespace
}

func (c *Cluster) clientset() (kubernetes.Interface, error) {
	c.clientsOnce.Do(func() {
		c.clients, c.clientsErr = c.newClients(c.config)
		if c.clientsErr != nil {
			c.clientsErr = errors.NewProcessError("failed to build cluster client", c.clientsErr).
				WithContext("kubeconfig", c.config.Kubeconfig).
				WithContext("context", c.config.Context)
		}
	})
	return c.clients, c.clientsErr
}

func (c *Cluster) kubectl(args ...string) Command {
	full := append([]string{}, c.config.Command...)
	if c.config.Kubeconfig != "" {
		full = append(full, "--kubeconfig", c.config.Kubeconfig)
	}
	if c.config.Context != "" {
		full = append(full, "--context", c.config.Context)
	}
	return Command{Args: append(full, args...)}
}

// Available reports whether the kubectl client is installed.
func (c *Cluster) Available(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, Command{Args: append(append([]string{}, c.config.Command...), "version", "--client")}); err != nil {
		return errors.NewProcessError("kubectl is not available", err)
	}
	return nil
}

// EnsureNamespace creates the namespace unless it exists.
func (c *Cluster) EnsureNamespace(ctx context.Context) error {
	clients, err := c.clientset()
	if err != nil {
		return err
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   c.config.Namespace,
			Labels: map[string]string{managedByLabel: "hsu-stack"},
		},
	}
	_, err = clients.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		c.logger.Debugf("Namespace already exists, namespace: %s", c.config.Namespace)
		return nil
	}
	if err != nil {
		return errors.NewProcessError("failed to create namespace", err).WithContext("namespace", c.config.Namespace)
	}
	c.logger.Infof("Created namespace, namespace: %s", c.config.Namespace)
	return nil
}

// DeleteNamespace removes the namespace and everything in it. A missing
// namespace is not an error.
func (c *Cluster) DeleteNamespace(ctx context.Context) error {
	clients, err := c.clientset()
	if err != nil {
		return err
	}

	err = clients.CoreV1().Namespaces().Delete(ctx, c.config.Namespace, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return errors.NewProcessError("failed to delete namespace", err).WithContext("namespace", c.config.Namespace)
	}
	return nil
}

// ApplyConfigMap creates the config map or replaces its data.
func (c *Cluster) ApplyConfigMap(ctx context.Context, name string, data map[string]string) error {
	clients, err := c.clientset()
	if err != nil {
		return err
	}
	configMaps := clients.CoreV1().ConfigMaps(c.config.Namespace)

	existing, err := configMaps.Get(ctx, name, metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: c.config.Namespace,
				Labels:    map[string]string{managedByLabel: "hsu-stack"},
			},
			Data: data,
		}
		if _, err := configMaps.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return errors.NewProcessError("failed to create config map", err).WithContext("config_map", name)
		}
	case err != nil:
		return errors.NewProcessError("failed to read config map", err).WithContext("config_map", name)
	default:
		existing.Data = data
		if _, err := configMaps.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
			return errors.NewProcessError("failed to update config map", err).WithContext("config_map", name)
		}
	}
	return nil
}

// Apply applies a manifest file with kubectl.
func (c *Cluster) Apply(ctx context.Context, file string) (string, error) {
	result, err := c.runner.Run(ctx, c.kubectl("apply", "-f", file))
	if err != nil {
		return result.Stdout, errors.NewProcessError("kubectl apply failed", err).WithContext("file", file)
	}
	return result.Stdout, nil
}

// Delete deletes the objects of a manifest file with kubectl.
func (c *Cluster) Delete(ctx context.Context, file string) (string, error) {
	result, err := c.runner.Run(ctx, c.kubectl("delete", "-f", file))
	if err != nil {
		return result.Stdout, errors.NewProcessError("kubectl delete failed", err).WithContext("file", file)
	}
	return result.Stdout, nil
}

// Get returns kubectl's listing of kind (optionally restricted to names)
// in the namespace.
func (c *Cluster) Get(ctx context.Context, kind string, names ...string) (string, error) {
	args := append([]string{"get", kind}, names...)
	args = append(args, "-n", c.config.Namespace)
	result, err := c.runner.Run(ctx, c.kubectl(args...))
	if err != nil {
		return result.Stdout, errors.NewProcessError("kubectl get failed", err).WithContext("kind", kind)
	}
	return result.Stdout, nil
}
