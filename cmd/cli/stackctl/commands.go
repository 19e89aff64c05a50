package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/core-tools/hsu-stack/pkg/orchestrator"
	"github.com/core-tools/hsu-stack/pkg/topology"

	flags "github.com/jessevdk/go-flags"
)

type commandEntry struct {
	name    string
	aliases []string
	short   string
	data    flags.Commander
}

func commandTable(app *app) []commandEntry {
	return []commandEntry{
		{"start-all", []string{"all"}, "start infrastructure, data, backends and gateways", &startAllCommand{app: app}},
		{"start-infrastructure", []string{"infra"}, "start the infrastructure tier", &startTierCommand{app: app, tier: topology.TierInfrastructure}},
		{"start-backend", []string{"srv"}, "start the backend tier", &startTierCommand{app: app, tier: topology.TierBackend}},
		{"start-gateway", []string{"api"}, "start the gateway tier", &startTierCommand{app: app, tier: topology.TierGateway}},
		{"stop-all", []string{"stop"}, "stop tracked services and the infrastructure", &stopAllCommand{app: app}},
		{"status", nil, "show infrastructure and tracked services", &statusCommand{app: app}},
		{"init-data", []string{"init-db"}, "load the init script into the data store", &initDataCommand{app: app}},
		{"build-images", []string{"docker-build"}, "build service images", &buildImagesCommand{app: app}},
		{"compose-up", []string{"docker-up"}, "start the whole compose stack", &composeUpCommand{app: app}},
		{"compose-down", []string{"docker-down"}, "stop the whole compose stack", &composeDownCommand{app: app}},
		{"cluster-deploy", []string{"k8s-deploy"}, "deploy the stack to the cluster", &clusterDeployCommand{app: app}},
		{"cluster-undeploy", []string{"k8s-undeploy"}, "remove the stack from the cluster", &clusterUndeployCommand{app: app}},
	}
}

func registerCommands(parser *flags.Parser, app *app) error {
	for _, entry := range commandTable(app) {
		command, err := parser.AddCommand(entry.name, entry.short, entry.short, entry.data)
		if err != nil {
			return err
		}
		command.Aliases = entry.aliases
	}
	_, err := parser.AddCommand("help", "show the command list", "show the command list", &helpCommand{parser: parser, out: app.out})
	return err
}

func printCommands(out io.Writer, parser *flags.Parser) {
	fmt.Fprintf(out, "Usage: %s [options] <command>\n\nCommands:\n", parser.Name)
	commands := parser.Commands()
	sort.SliceStable(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })
	for _, command := range commands {
		name := command.Name
		if len(command.Aliases) > 0 {
			name += " (" + strings.Join(command.Aliases, ", ") + ")"
		}
		fmt.Fprintf(out, "  %-42s %s\n", name, command.ShortDescription)
	}
}

type helpCommand struct {
	parser *flags.Parser
	out    io.Writer
}

func (c *helpCommand) Execute([]string) error {
	printCommands(c.out, c.parser)
	return nil
}

type startAllCommand struct {
	app  *app
	Wait bool `long:"wait" description:"keep running until interrupted, then stop everything"`
}

func (c *startAllCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}

	report, err := o.StartAll(c.app.ctx)
	c.app.finish(report)
	if err != nil || !c.Wait {
		return err
	}

	c.app.console.Notice("Services are running, press Ctrl+C to stop")
	<-c.app.ctx.Done()

	// the run context is cancelled by now
	report, err = o.StopAll(c.app.shutdownContext())
	c.app.finish(report)
	return err
}

type startTierCommand struct {
	app  *app
	tier topology.Tier
}

func (c *startTierCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}
	report, err := o.StartTier(c.app.ctx, c.tier)
	c.app.finish(report)
	return err
}

type stopAllCommand struct {
	app *app
}

func (c *stopAllCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}
	report, err := o.StopAll(c.app.shutdownContext())
	c.app.finish(report)
	return err
}

type statusCommand struct {
	app *app
}

func (c *statusCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}
	return printStatus(c.app.out, o.Status(c.app.ctx))
}

type initDataCommand struct {
	app *app
}

func (c *initDataCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}
	report, err := o.InitData(c.app.ctx)
	c.app.finish(report)
	return err
}

type buildImagesCommand struct {
	app *app
}

func (c *buildImagesCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}
	report, err := o.BuildImages(c.app.ctx)
	c.app.finish(report)
	return err
}

type composeUpCommand struct {
	app *app
}

func (c *composeUpCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}
	report, err := o.ComposeUp(c.app.ctx)
	c.app.finish(report)
	return err
}

type composeDownCommand struct {
	app *app
}

func (c *composeDownCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}
	report, err := o.ComposeDown(c.app.ctx)
	c.app.finish(report)
	return err
}

type clusterDeployCommand struct {
	app *app
}

func (c *clusterDeployCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}

	confirmed, err := confirmWithForce(fmt.Sprintf("Deploy the stack to namespace %s", c.app.cfg.Cluster.Namespace), c.app.opts.Yes)
	if err != nil {
		return err
	}

	report, err := o.ClusterDeploy(c.app.ctx, orchestrator.DeployOptions{Confirmed: confirmed})
	c.app.finish(report)
	return err
}

type clusterUndeployCommand struct {
	app             *app
	DeleteNamespace bool `long:"delete-namespace" description:"also delete the namespace and all data in it"`
}

func (c *clusterUndeployCommand) Execute([]string) error {
	o, err := c.app.orchestrator()
	if err != nil {
		return err
	}

	deleteNamespace := c.DeleteNamespace
	if !deleteNamespace && !c.app.opts.Yes {
		deleteNamespace, err = confirm(fmt.Sprintf("Delete namespace %s and all its data", c.app.cfg.Cluster.Namespace), false)
		if err != nil {
			return err
		}
	}

	report, err := o.ClusterUndeploy(c.app.ctx, orchestrator.UndeployOptions{DeleteNamespace: deleteNamespace})
	c.app.finish(report)
	return err
}
