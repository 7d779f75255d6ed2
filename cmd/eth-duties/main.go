// Package main launches eth-duties, a tool that logs upcoming validator
// duties so that operators can schedule maintenance in duty-free windows.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ethduties/eth-duties/cmd/eth-duties/flags"
	"github.com/ethduties/eth-duties/io/logs"
	"github.com/ethduties/eth-duties/node"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

var appFlags = []cli.Flag{
	flags.BeaconNodesFlag,
	flags.IntervalFlag,
	flags.VerbosityFlag,
	flags.LogPubkeysFlag,
	flags.LogColorWarningFlag,
	flags.LogColorCriticalFlag,
	flags.LogColorProposingFlag,
	flags.LogTimeWarningFlag,
	flags.LogTimeCriticalFlag,
	flags.MaxAttestationDutyLogsFlag,
	flags.ModeFlag,
	flags.ModeCicdWaitingTimeFlag,
	flags.ModeCicdAttestationTimeFlag,
	flags.ModeCicdAttestationProportionFlag,
	flags.OmitAttestationDutiesFlag,
	flags.RestFlag,
	flags.RestHostFlag,
	flags.RestPortFlag,
	flags.ValidatorsFlag,
	flags.ValidatorsFileFlag,
	flags.ValidatorNodesFlag,
	flags.ValidatorUpdateIntervalFlag,
	flags.MonitoringHostFlag,
	flags.MonitoringPortFlag,
	flags.DisableMonitoringFlag,
	flags.LogFileFlag,
	flags.ConfigFileFlag,
}

func main() {
	app := cli.App{}
	app.Name = "eth-duties"
	app.Usage = "logs upcoming validator duties to the console and gates CI/CD pipelines on duty-free windows"
	app.Flags = appFlags
	app.Action = startDuties
	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(flags.ConfigFileFlag.Name) {
			if err := altsrc.InitInputSourceWithContext(
				appFlags,
				altsrc.NewYamlSourceFromFlagFunc(
					flags.ConfigFileFlag.Name))(ctx); err != nil {
				return err
			}
		}

		formatter := new(prefixed.TextFormatter)
		formatter.TimestampFormat = "2006-01-02 15:04:05"
		formatter.FullTimestamp = true
		logrus.SetFormatter(formatter)

		level, err := logrus.ParseLevel(ctx.String(flags.VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		if file := ctx.String(flags.LogFileFlag.Name); file != "" {
			if err := logs.ConfigurePersistentLogging(file); err != nil {
				log.WithError(err).Error("Failed to configure file logging")
				return err
			}
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func startDuties(cliCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := node.New(ctx, cliCtx)
	if err != nil {
		return err
	}
	code := n.Run()
	n.Close()
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
