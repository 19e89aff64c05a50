package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/core-tools/hsu-stack/pkg/errors"
)

// DeployOptions carries the operator's answer; the core never prompts.
type DeployOptions struct {
	Confirmed bool
}

type UndeployOptions struct {
	DeleteNamespace bool
}

// BuildImages builds every configured image, continuing past failures.
func (o *Orchestrator) BuildImages(ctx context.Context) (*Report, error) {
	report := newReport("build-images")
	if err := o.requireEngine(ctx, report); err != nil {
		return report.finish(), err
	}

	o.reporter.Phase("Building images")
	for _, image := range o.options.Images {
		if err := ctx.Err(); err != nil {
			return report.finish(), errors.NewCancelledError("image build cancelled", err)
		}

		o.logger.Infof("Building image, image: %s, path: %s", image.Name, image.Path)
		if err := o.engine.BuildImage(ctx, image); err != nil {
			o.logger.Errorf("Image build failed, image: %s, error: %v", image.Name, err)
			o.fail(report, Result{Name: image.Name, Err: err})
			continue
		}
		o.succeed(report, Result{Name: image.Name, Detail: "built"})
	}

	o.logger.Infof("%s", report.Summary())
	return report.finish(), nil
}

// ComposeUp starts the whole compose stack in one call.
func (o *Orchestrator) ComposeUp(ctx context.Context) (*Report, error) {
	report := newReport("compose-up")
	if err := o.requireEngine(ctx, report); err != nil {
		return report.finish(), err
	}

	o.reporter.Phase("Starting compose stack")
	o.prepareInfrastructure(ctx, report)
	if err := o.engine.ComposeUp(ctx); err != nil {
		o.fail(report, Result{Name: "compose", Err: err})
	} else {
		o.succeed(report, Result{Name: "compose", Detail: "up"})
	}
	return report.finish(), nil
}

func (o *Orchestrator) ComposeDown(ctx context.Context) (*Report, error) {
	report := newReport("compose-down")
	if err := o.requireEngine(ctx, report); err != nil {
		return report.finish(), err
	}

	o.reporter.Phase("Stopping compose stack")
	if err := o.engine.ComposeDown(ctx); err != nil {
		o.fail(report, Result{Name: "compose", Err: err})
	} else {
		o.succeed(report, Result{Name: "compose", Detail: "down"})
	}
	return report.finish(), nil
}

// ClusterDeploy prepares the namespace and init script config map, applies
// the manifests in order, waits for the rollout and collects listings. An
// unconfirmed call touches nothing and only records a warning.
func (o *Orchestrator) ClusterDeploy(ctx context.Context, options DeployOptions) (*Report, error) {
	report := newReport("cluster-deploy")
	if !options.Confirmed {
		o.warn(report, nil, "cluster deployment not confirmed, nothing was changed")
		return report.finish(), nil
	}
	if err := o.requireCluster(ctx, report); err != nil {
		return report.finish(), err
	}

	clusterOptions := o.options.Cluster
	namespace := o.cluster.Namespace()

	o.reporter.Phase("Preparing namespace " + namespace)
	if err := o.cluster.EnsureNamespace(ctx); err != nil {
		o.fail(report, Result{Name: "namespace", Err: err})
	} else {
		o.succeed(report, Result{Name: "namespace", Detail: namespace})
	}

	o.applyInitScript(ctx, report)

	o.reporter.Phase("Applying manifests")
	for _, manifest := range clusterOptions.Manifests {
		if err := ctx.Err(); err != nil {
			return report.finish(), errors.NewCancelledError("cluster deployment cancelled", err)
		}
		if _, err := o.cluster.Apply(ctx, manifest.File); err != nil {
			o.fail(report, Result{Name: manifest.Name, Err: err})
			continue
		}
		o.succeed(report, Result{Name: manifest.Name, Detail: "applied"})
	}

	if clusterOptions.RolloutWait > 0 {
		o.reporter.Waiting("rollout", clusterOptions.RolloutWait)
		o.sleep(ctx, clusterOptions.RolloutWait)
	}

	o.collectListing(ctx, report, "Pods", "pods")
	o.collectListing(ctx, report, "Services", "svc")
	if clusterOptions.GatewayService != "" {
		o.collectListing(ctx, report, "Gateway", "svc", clusterOptions.GatewayService)
	}

	o.logger.Infof("%s", report.Summary())
	return report.finish(), nil
}

// ClusterUndeploy deletes the manifests in reverse order and optionally
// the namespace with everything left in it.
func (o *Orchestrator) ClusterUndeploy(ctx context.Context, options UndeployOptions) (*Report, error) {
	report := newReport("cluster-undeploy")
	if err := o.requireCluster(ctx, report); err != nil {
		return report.finish(), err
	}

	manifests := o.options.Cluster.Manifests
	o.reporter.Phase("Deleting manifests")
	for i := len(manifests) - 1; i >= 0; i-- {
		manifest := manifests[i]
		if _, err := o.cluster.Delete(ctx, manifest.File); err != nil {
			o.fail(report, Result{Name: manifest.Name, Err: err})
			continue
		}
		o.succeed(report, Result{Name: manifest.Name, Detail: "deleted"})
	}

	if options.DeleteNamespace {
		o.reporter.Phase("Deleting namespace " + o.cluster.Namespace())
		if err := o.cluster.DeleteNamespace(ctx); err != nil {
			o.fail(report, Result{Name: "namespace", Err: err})
		} else {
			o.succeed(report, Result{Name: "namespace", Detail: "deleted"})
		}
	}

	o.logger.Infof("%s", report.Summary())
	return report.finish(), nil
}

// applyInitScript publishes the data init script as a config map. A missing
// script only warns; the manifests fall back to their own defaults.
func (o *Orchestrator) applyInitScript(ctx context.Context, report *Report) {
	name := o.options.Cluster.InitConfigMap
	script := o.options.Cluster.InitScript
	if name == "" || script == "" {
		return
	}

	content, err := os.ReadFile(script)
	if err != nil {
		o.warn(report, nil, "init script %s not readable, config map %s not updated: %v", script, name, err)
		return
	}

	data := map[string]string{filepath.Base(script): string(content)}
	if err := o.cluster.ApplyConfigMap(ctx, name, data); err != nil {
		o.fail(report, Result{Name: name, Err: err})
		return
	}
	o.succeed(report, Result{Name: name, Detail: "config map"})
}

func (o *Orchestrator) collectListing(ctx context.Context, report *Report, title, kind string, names ...string) {
	output, err := o.cluster.Get(ctx, kind, names...)
	if err != nil {
		o.warn(report, err, "failed to list %s: %v", kind, err)
		return
	}
	section := Section{Title: title, Text: output}
	report.Sections = append(report.Sections, section)
	o.reporter.Section(section)
}
