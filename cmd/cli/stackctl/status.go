package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/core-tools/hsu-stack/pkg/orchestrator"
)

func printStatus(out io.Writer, status *orchestrator.StatusReport) error {
	fmt.Fprintln(out, titleStyle.Render("Infrastructure"))
	if status.InfrastructureErr != nil {
		fmt.Fprintln(out, failureStyle.Render(fmt.Sprintf("  unavailable: %v", status.InfrastructureErr)))
	} else {
		fmt.Fprintln(out, strings.TrimRight(status.Infrastructure, "\n"))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("Tracked services"))
	if len(status.Units) == 0 {
		fmt.Fprintln(out, dimStyle.Render("  none tracked by this invocation"))
		return nil
	}

	renderUnits(out, status.Units)
	return nil
}

func renderUnits(out io.Writer, units []orchestrator.UnitStatus) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"NAME", "TIER", "PID", "SOURCE", "STATE", "LOG"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, unit := range units {
		state := "running"
		if !unit.Alive {
			state = "exited"
		}
		table.Append([]string{
			unit.Name,
			string(unit.Tier),
			strconv.Itoa(unit.PID),
			string(unit.Source),
			state,
			unit.LogFile,
		})
	}
	table.Render()
}
