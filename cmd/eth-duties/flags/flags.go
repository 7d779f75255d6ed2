// Package flags contains all configuration runtime flags for eth-duties.
package flags

import (
	"strings"
	"time"

	"github.com/ethduties/eth-duties/cicd"
	"github.com/ethduties/eth-duties/duties/dutylog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	// BeaconNodesFlag defines the beacon node endpoints, primary first.
	BeaconNodesFlag = &cli.StringFlag{
		Name:  "beacon-nodes",
		Usage: "Comma separated list of URLs to access the beacon node api. The first is the primary, the rest are backups.",
		Value: "http://localhost:5052",
	}
	// IntervalFlag defines the seconds between duty log cycles.
	IntervalFlag = &cli.IntFlag{
		Name:  "interval",
		Usage: "Interval in seconds for fetching data from the beacon node.",
		Value: 15,
	}
	// VerbosityFlag defines the logging level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "log",
		Usage: "Defines log level. Values are 'DEBUG' or 'INFO'.",
		Value: "INFO",
	}
	// LogPubkeysFlag renders pubkeys instead of indices when no alias is set.
	LogPubkeysFlag = &cli.BoolFlag{
		Name:  "log-pubkeys",
		Usage: "Log the pubkey instead of the validator index when no alias is set.",
	}
	// LogColorWarningFlag defines the warning background colour.
	LogColorWarningFlag = &cli.StringFlag{
		Name:  "log-color-warning",
		Usage: "Background color for duties at the warning threshold, as '#RRGGBB' or 'R,G,B'.",
		Value: "255,255,0",
	}
	// LogColorCriticalFlag defines the critical background colour.
	LogColorCriticalFlag = &cli.StringFlag{
		Name:  "log-color-critical",
		Usage: "Background color for duties at the critical threshold, as '#RRGGBB' or 'R,G,B'.",
		Value: "255,0,0",
	}
	// LogColorProposingFlag defines the proposing background colour.
	LogColorProposingFlag = &cli.StringFlag{
		Name:  "log-color-proposing",
		Usage: "Background color for proposing duties, as '#RRGGBB' or 'R,G,B'.",
		Value: "0,128,0",
	}
	// LogTimeWarningFlag defines the warning threshold in seconds.
	LogTimeWarningFlag = &cli.Int64Flag{
		Name:  "log-time-warning",
		Usage: "Time to duty in seconds at which a duty gets colored with the warning color.",
		Value: 120,
	}
	// LogTimeCriticalFlag defines the critical threshold in seconds.
	LogTimeCriticalFlag = &cli.Int64Flag{
		Name:  "log-time-critical",
		Usage: "Time to duty in seconds at which a duty gets colored with the critical color.",
		Value: 60,
	}
	// MaxAttestationDutyLogsFlag caps the attestation fan-out.
	MaxAttestationDutyLogsFlag = &cli.IntFlag{
		Name:  "max-attestation-duty-logs",
		Usage: "Max. number of validators for which attestation duties will be fetched and logged.",
		Value: 50,
	}
	// ModeFlag selects the run mode.
	ModeFlag = &cli.StringFlag{
		Name:  "mode",
		Usage: "Run mode. Values are 'log', 'no-log', 'cicd-exit', 'cicd-wait' or 'cicd-force-graceful-exit'.",
		Value: "log",
	}
	// ModeCicdWaitingTimeFlag bounds the waiting budget in cicd-wait mode.
	ModeCicdWaitingTimeFlag = &cli.IntFlag{
		Name:  "mode-cicd-waiting-time",
		Usage: "Max. waiting time in seconds until the process exits with code 1 in mode 'cicd-wait'.",
		Value: 780,
	}
	// ModeCicdAttestationTimeFlag is the attestation time horizon in seconds.
	ModeCicdAttestationTimeFlag = &cli.Int64Flag{
		Name:  "mode-cicd-attestation-time",
		Usage: "Attestation duties at least this many seconds away are considered non-blocking in cicd modes.",
		Value: 240,
	}
	// ModeCicdAttestationProportionFlag is the non-blocking proportion bound.
	ModeCicdAttestationProportionFlag = &cli.Float64Flag{
		Name:  "mode-cicd-attestation-proportion",
		Usage: "Proportion of attestation duties beyond the time horizon needed for a graceful exit, between 0 and 1.",
		Value: 1,
	}
	// OmitAttestationDutiesFlag skips attestation fetching entirely.
	OmitAttestationDutiesFlag = &cli.BoolFlag{
		Name:  "omit-attestation-duties",
		Usage: "Do not fetch and log upcoming attestation duties.",
	}
	// RestFlag starts the REST server.
	RestFlag = &cli.BoolFlag{
		Name:  "rest",
		Usage: "Start a rest server which exposes the fetched duties.",
	}
	// RestHostFlag defines the REST listen host.
	RestHostFlag = &cli.StringFlag{
		Name:  "rest-host",
		Usage: "Host of the rest server.",
		Value: "127.0.0.1",
	}
	// RestPortFlag defines the REST listen port.
	RestPortFlag = &cli.IntFlag{
		Name:  "rest-port",
		Usage: "Port of the rest server.",
		Value: 5000,
	}
	// ValidatorsFlag supplies identifier tokens on the command line.
	ValidatorsFlag = &cli.StringSliceFlag{
		Name: "validators",
		Usage: "One or many validator identifiers for which next duties will be fetched, " +
			"separated by space or comma. Can be provided multiple times.",
	}
	// ValidatorsFileFlag supplies identifier tokens from a file.
	ValidatorsFileFlag = &cli.StringFlag{
		Name:  "validators-file",
		Usage: "File with validator identifiers where every identifier is on a separate line.",
	}
	// ValidatorNodesFlag supplies key-manager endpoints from a file.
	ValidatorNodesFlag = &cli.StringFlag{
		Name:  "validator-nodes",
		Usage: "File with one '<URL>;<BEARER>' validator key-manager endpoint per line.",
	}
	// ValidatorUpdateIntervalFlag defines the registry refresh interval in minutes.
	ValidatorUpdateIntervalFlag = &cli.IntFlag{
		Name:  "validator-update-interval",
		Usage: "Interval in minutes between validator identifier refreshes.",
		Value: 10,
	}
	// MonitoringHostFlag defines the metrics listen host.
	MonitoringHostFlag = &cli.StringFlag{
		Name:  "monitoring-host",
		Usage: "Host used for the prometheus listener.",
		Value: "127.0.0.1",
	}
	// MonitoringPortFlag defines the metrics listen port.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used for the prometheus listener.",
		Value: 8081,
	}
	// DisableMonitoringFlag disables the metrics listener.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable the prometheus listener.",
	}
	// LogFileFlag mirrors the console output into a file.
	LogFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Specify log file name, relative or absolute.",
	}
	// ConfigFileFlag loads flag values from a YAML file.
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config-file",
		Usage: "Path to a YAML file with flag values.",
	}
)

// Config is the validated runtime configuration.
type Config struct {
	BeaconNodes               []string
	Interval                  time.Duration
	LogPubkeys                bool
	TimeWarning               int64
	TimeCritical              int64
	ColorWarning              dutylog.RGB
	ColorCritical             dutylog.RGB
	ColorProposing            dutylog.RGB
	MaxAttestationDutyLogs    int
	Mode                      cicd.Mode
	CicdWaitingTime           time.Duration
	CicdAttestationTime       int64
	CicdAttestationProportion float64
	OmitAttestationDuties     bool
	Rest                      bool
	RestHost                  string
	RestPort                  int
	ValidatorTokens           []string
	ValidatorsFile            string
	ValidatorNodesFile        string
	ValidatorUpdateInterval   time.Duration
	MonitoringHost            string
	MonitoringPort            int
	DisableMonitoring         bool
}

// ParseConfig validates the CLI input and returns the runtime configuration.
func ParseConfig(cliCtx *cli.Context) (*Config, error) {
	cfg := &Config{
		LogPubkeys:                cliCtx.Bool(LogPubkeysFlag.Name),
		TimeWarning:               cliCtx.Int64(LogTimeWarningFlag.Name),
		TimeCritical:              cliCtx.Int64(LogTimeCriticalFlag.Name),
		MaxAttestationDutyLogs:    cliCtx.Int(MaxAttestationDutyLogsFlag.Name),
		CicdAttestationTime:       cliCtx.Int64(ModeCicdAttestationTimeFlag.Name),
		CicdAttestationProportion: cliCtx.Float64(ModeCicdAttestationProportionFlag.Name),
		OmitAttestationDuties:     cliCtx.Bool(OmitAttestationDutiesFlag.Name),
		Rest:                      cliCtx.Bool(RestFlag.Name),
		RestHost:                  cliCtx.String(RestHostFlag.Name),
		RestPort:                  cliCtx.Int(RestPortFlag.Name),
		ValidatorsFile:            cliCtx.String(ValidatorsFileFlag.Name),
		ValidatorNodesFile:        cliCtx.String(ValidatorNodesFlag.Name),
		MonitoringHost:            cliCtx.String(MonitoringHostFlag.Name),
		MonitoringPort:            cliCtx.Int(MonitoringPortFlag.Name),
		DisableMonitoring:         cliCtx.Bool(DisableMonitoringFlag.Name),
	}

	interval := cliCtx.Int(IntervalFlag.Name)
	if interval < 12 {
		return nil, errors.New("the interval should be greater or equal the slot time (12 seconds)")
	}
	cfg.Interval = time.Duration(interval) * time.Second
	cfg.ValidatorUpdateInterval = time.Duration(cliCtx.Int(ValidatorUpdateIntervalFlag.Name)) * time.Minute

	nodes, err := parseBeaconNodes(cliCtx.String(BeaconNodesFlag.Name))
	if err != nil {
		return nil, err
	}
	cfg.BeaconNodes = nodes

	if cfg.TimeWarning <= 0 || cfg.TimeCritical <= 0 {
		return nil, errors.New("passed time values should be > 0")
	}
	if cfg.TimeWarning < cfg.TimeCritical {
		return nil, errors.Errorf(
			"passed seconds for '--log-time-warning' (%d) need to be greater than for '--log-time-critical' (%d)",
			cfg.TimeWarning, cfg.TimeCritical)
	}

	if cfg.ColorWarning, err = dutylog.ParseRGB(cliCtx.String(LogColorWarningFlag.Name)); err != nil {
		return nil, err
	}
	if cfg.ColorCritical, err = dutylog.ParseRGB(cliCtx.String(LogColorCriticalFlag.Name)); err != nil {
		return nil, err
	}
	if cfg.ColorProposing, err = dutylog.ParseRGB(cliCtx.String(LogColorProposingFlag.Name)); err != nil {
		return nil, err
	}

	if cfg.Mode, err = cicd.ParseMode(cliCtx.String(ModeFlag.Name)); err != nil {
		return nil, err
	}
	cfg.CicdWaitingTime = time.Duration(cliCtx.Int(ModeCicdWaitingTimeFlag.Name)) * time.Second
	if cfg.Mode == cicd.ModeWait && cfg.CicdWaitingTime < cfg.Interval {
		return nil, errors.New("the value for flag '--mode-cicd-waiting-time' should be >= the fetching interval")
	}
	if cfg.CicdAttestationProportion < 0 || cfg.CicdAttestationProportion > 1 {
		return nil, errors.New("the value for flag '--mode-cicd-attestation-proportion' should be between 0 and 1")
	}

	cfg.ValidatorTokens = splitTokens(cliCtx.StringSlice(ValidatorsFlag.Name))
	if (len(cfg.ValidatorTokens) > 0) == (cfg.ValidatorsFile != "") {
		return nil, errors.New("ONE of the following flags is required: '--validators', '--validators-file'")
	}

	return cfg, nil
}

func parseBeaconNodes(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	nodes := make([]string, 0, len(parts))
	for _, part := range parts {
		url := strings.TrimSpace(part)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, errors.Errorf("beacon node URL %q needs to start with 'http://' or 'https://'", url)
		}
		nodes = append(nodes, url)
	}
	return nodes, nil
}

func splitTokens(values []string) []string {
	var tokens []string
	for _, value := range values {
		for _, field := range strings.Fields(strings.ReplaceAll(value, ",", " ")) {
			tokens = append(tokens, field)
		}
	}
	return tokens
}
