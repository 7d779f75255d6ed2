// This code was adapted from https://github.com/ethereum/go-ethereum/blob/master/cmd/geth/usage.go
package main

import (
	"io"
	"sort"

	"github.com/ethduties/eth-duties/cmd/eth-duties/flags"
	"github.com/urfave/cli/v2"
)

var appHelpTemplate = `NAME:
   {{.App.Name}} - {{.App.Usage}}
USAGE:
   {{.App.HelpName}} [options]{{if .App.Commands}} command [command options]{{end}} {{if .App.ArgsUsage}}{{.App.ArgsUsage}}{{else}}[arguments...]{{end}}
   {{if .App.Version}}
AUTHOR:
   {{range .App.Authors}}{{ . }}{{end}}
   {{end}}{{if .App.Commands}}
GLOBAL OPTIONS:
   {{range .App.Commands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
   {{end}}{{end}}{{if .FlagGroups}}
{{range .FlagGroups}}{{.Name}} OPTIONS:
   {{range .Flags}}{{.}}
   {{end}}
{{end}}{{end}}{{if .App.Copyright }}
COPYRIGHT:
   {{.App.Copyright}}
VERSION:
   {{.App.Version}}
   {{end}}{{if len .App.Authors}}
   {{end}}
`

type flagGroup struct {
	Name  string
	Flags []cli.Flag
}

var appHelpFlagGroups = []flagGroup{
	{
		Name: "validators",
		Flags: []cli.Flag{
			flags.ValidatorsFlag,
			flags.ValidatorsFileFlag,
			flags.ValidatorNodesFlag,
			flags.ValidatorUpdateIntervalFlag,
		},
	},
	{
		Name: "fetching",
		Flags: []cli.Flag{
			flags.BeaconNodesFlag,
			flags.IntervalFlag,
			flags.MaxAttestationDutyLogsFlag,
			flags.OmitAttestationDutiesFlag,
		},
	},
	{
		Name: "log",
		Flags: []cli.Flag{
			flags.VerbosityFlag,
			flags.LogFileFlag,
			flags.LogPubkeysFlag,
			flags.LogColorWarningFlag,
			flags.LogColorCriticalFlag,
			flags.LogColorProposingFlag,
			flags.LogTimeWarningFlag,
			flags.LogTimeCriticalFlag,
		},
	},
	{
		Name: "mode",
		Flags: []cli.Flag{
			flags.ModeFlag,
			flags.ModeCicdWaitingTimeFlag,
			flags.ModeCicdAttestationTimeFlag,
			flags.ModeCicdAttestationProportionFlag,
		},
	},
	{
		Name: "rest",
		Flags: []cli.Flag{
			flags.RestFlag,
			flags.RestHostFlag,
			flags.RestPortFlag,
		},
	},
	{
		Name: "monitoring",
		Flags: []cli.Flag{
			flags.MonitoringHostFlag,
			flags.MonitoringPortFlag,
			flags.DisableMonitoringFlag,
		},
	},
	{
		Name: "config",
		Flags: []cli.Flag{
			flags.ConfigFileFlag,
		},
	},
}

func init() {
	cli.AppHelpTemplate = appHelpTemplate

	type helpData struct {
		App        interface{}
		FlagGroups []flagGroup
	}

	originalHelpPrinter := cli.HelpPrinter
	cli.HelpPrinter = func(w io.Writer, tmpl string, data interface{}) {
		if tmpl == appHelpTemplate {
			for _, group := range appHelpFlagGroups {
				sort.Sort(cli.FlagsByName(group.Flags))
			}
			originalHelpPrinter(w, tmpl, helpData{data, appHelpFlagGroups})
		} else {
			originalHelpPrinter(w, tmpl, data)
		}
	}
}
