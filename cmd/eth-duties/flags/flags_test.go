package flags

import (
	"testing"
	"time"

	"github.com/ethduties/eth-duties/cicd"
	"github.com/ethduties/eth-duties/duties/dutylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// parseWith runs ParseConfig against a throwaway app so flag defaults apply.
func parseWith(t *testing.T, args ...string) (*Config, error) {
	var cfg *Config
	var parseErr error
	app := &cli.App{
		Flags: []cli.Flag{
			BeaconNodesFlag,
			IntervalFlag,
			VerbosityFlag,
			LogPubkeysFlag,
			LogColorWarningFlag,
			LogColorCriticalFlag,
			LogColorProposingFlag,
			LogTimeWarningFlag,
			LogTimeCriticalFlag,
			MaxAttestationDutyLogsFlag,
			ModeFlag,
			ModeCicdWaitingTimeFlag,
			ModeCicdAttestationTimeFlag,
			ModeCicdAttestationProportionFlag,
			OmitAttestationDutiesFlag,
			RestFlag,
			RestHostFlag,
			RestPortFlag,
			ValidatorsFlag,
			ValidatorsFileFlag,
			ValidatorNodesFlag,
			ValidatorUpdateIntervalFlag,
			MonitoringHostFlag,
			MonitoringPortFlag,
			DisableMonitoringFlag,
		},
		Action: func(cliCtx *cli.Context) error {
			cfg, parseErr = ParseConfig(cliCtx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"eth-duties"}, args...)))
	return cfg, parseErr
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseWith(t, "--validators", "42")
	require.NoError(t, err)

	assert.Equal(t, []string{"http://localhost:5052"}, cfg.BeaconNodes)
	assert.Equal(t, 15*time.Second, cfg.Interval)
	assert.Equal(t, int64(120), cfg.TimeWarning)
	assert.Equal(t, int64(60), cfg.TimeCritical)
	assert.Equal(t, dutylog.RGB{R: 255, G: 255}, cfg.ColorWarning)
	assert.Equal(t, dutylog.RGB{R: 255}, cfg.ColorCritical)
	assert.Equal(t, dutylog.RGB{G: 128}, cfg.ColorProposing)
	assert.Equal(t, 50, cfg.MaxAttestationDutyLogs)
	assert.Equal(t, cicd.ModeLog, cfg.Mode)
	assert.Equal(t, 780*time.Second, cfg.CicdWaitingTime)
	assert.Equal(t, int64(240), cfg.CicdAttestationTime)
	assert.Equal(t, float64(1), cfg.CicdAttestationProportion)
	assert.Equal(t, 5000, cfg.RestPort)
	assert.Equal(t, 10*time.Minute, cfg.ValidatorUpdateInterval)
	assert.Equal(t, []string{"42"}, cfg.ValidatorTokens)
}

func TestParseConfigIntervalBounds(t *testing.T) {
	cfg, err := parseWith(t, "--validators", "42", "--interval", "12")
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, cfg.Interval)

	_, err = parseWith(t, "--validators", "42", "--interval", "11")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater or equal the slot time")
}

func TestParseConfigLogTimes(t *testing.T) {
	_, err := parseWith(t, "--validators", "42",
		"--log-time-warning", "60", "--log-time-critical", "60")
	require.NoError(t, err)

	_, err = parseWith(t, "--validators", "42",
		"--log-time-warning", "30", "--log-time-critical", "60")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'--log-time-warning'")

	_, err = parseWith(t, "--validators", "42", "--log-time-critical", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be > 0")
}

func TestParseConfigColors(t *testing.T) {
	cfg, err := parseWith(t, "--validators", "42", "--log-color-warning", "#FF8000")
	require.NoError(t, err)
	assert.Equal(t, dutylog.RGB{R: 255, G: 128}, cfg.ColorWarning)

	_, err = parseWith(t, "--validators", "42", "--log-color-critical", "#FFF")
	require.Error(t, err)
}

func TestParseConfigMode(t *testing.T) {
	cfg, err := parseWith(t, "--validators", "42", "--mode", "cicd-exit")
	require.NoError(t, err)
	assert.Equal(t, cicd.ModeExit, cfg.Mode)

	_, err = parseWith(t, "--validators", "42", "--mode", "exit")
	require.Error(t, err)
}

func TestParseConfigCicdWaitBudget(t *testing.T) {
	_, err := parseWith(t, "--validators", "42",
		"--mode", "cicd-wait", "--mode-cicd-waiting-time", "15")
	require.NoError(t, err)

	_, err = parseWith(t, "--validators", "42",
		"--mode", "cicd-wait", "--mode-cicd-waiting-time", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'--mode-cicd-waiting-time'")

	// Outside cicd-wait the waiting budget is not validated.
	_, err = parseWith(t, "--validators", "42", "--mode-cicd-waiting-time", "10")
	require.NoError(t, err)
}

func TestParseConfigProportionBounds(t *testing.T) {
	for _, valid := range []string{"0", "0.5", "1"} {
		_, err := parseWith(t, "--validators", "42",
			"--mode-cicd-attestation-proportion", valid)
		require.NoError(t, err, valid)
	}
	_, err := parseWith(t, "--validators", "42",
		"--mode-cicd-attestation-proportion", "1.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0 and 1")
}

func TestParseConfigBeaconNodes(t *testing.T) {
	cfg, err := parseWith(t, "--validators", "42",
		"--beacon-nodes", "http://localhost:5052, https://backup.example.com:5052")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:5052", "https://backup.example.com:5052"}, cfg.BeaconNodes)

	_, err = parseWith(t, "--validators", "42", "--beacon-nodes", "localhost:5052")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'http://' or 'https://'")
}

func TestParseConfigExactlyOneValidatorSource(t *testing.T) {
	_, err := parseWith(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ONE of the following flags is required")

	_, err = parseWith(t, "--validators", "42", "--validators-file", "validators.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ONE of the following flags is required")

	cfg, err := parseWith(t, "--validators-file", "validators.txt")
	require.NoError(t, err)
	assert.Equal(t, "validators.txt", cfg.ValidatorsFile)
	assert.Empty(t, cfg.ValidatorTokens)
}

func TestSplitTokens(t *testing.T) {
	cfg, err := parseWith(t, "--validators", "1,2 3", "--validators", "4;standby")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4;standby"}, cfg.ValidatorTokens)
}
