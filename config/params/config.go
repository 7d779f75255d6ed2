// Package params holds the chain and program constants used across
// eth-duties. The chain values are consensus-layer mainnet constants and are
// deliberately not configurable.
package params

import "time"

// DutiesConfig contains the constants the duty scheduler relies on.
type DutiesConfig struct {
	// Chain constants.
	SecondsPerSlot               uint64
	SlotsPerEpoch                uint64
	EpochsPerSyncCommitteePeriod uint64
	BLSPubkeyLength              int

	// Request layer.
	ValidatorChunkSize          int
	BeaconRequestRetryLimit     int
	KeymanagerRequestRetryLimit int
	ConnectionErrorWaitingTime  time.Duration
	ReadTimeoutWaitingTime      time.Duration
	RequestTimeout              time.Duration

	// Node pool log throttling.
	UsedBeaconNodeLogInterval time.Duration
	NodeDownLogInterval       time.Duration

	// REST handler bounds.
	RawDutyRequestTimeout time.Duration
	AnyDutyRequestTimeout time.Duration

	// Identifier registry.
	HighIdentifierCountThreshold int
}

var dutiesConfig = mainnetDutiesConfig()

func mainnetDutiesConfig() *DutiesConfig {
	return &DutiesConfig{
		SecondsPerSlot:               12,
		SlotsPerEpoch:                32,
		EpochsPerSyncCommitteePeriod: 256,
		BLSPubkeyLength:              48,

		ValidatorChunkSize:          1000,
		BeaconRequestRetryLimit:     1000,
		KeymanagerRequestRetryLimit: 3,
		ConnectionErrorWaitingTime:  2 * time.Second,
		ReadTimeoutWaitingTime:      5 * time.Second,
		RequestTimeout:              5 * time.Second,

		UsedBeaconNodeLogInterval: 2 * time.Minute,
		NodeDownLogInterval:       5 * time.Second,

		RawDutyRequestTimeout: 7 * time.Second,
		AnyDutyRequestTimeout: 10 * time.Second,

		HighIdentifierCountThreshold: 5000,
	}
}

// DutiesConf retrieves the duties config.
func DutiesConf() *DutiesConfig {
	return dutiesConfig
}

// OverrideDutiesConf replaces the global config. Tests use this to shrink
// retry limits and waiting times.
func OverrideDutiesConf(c *DutiesConfig) {
	dutiesConfig = c
}

// SlotDuration returns the duration of a single slot.
func (c *DutiesConfig) SlotDuration() time.Duration {
	return time.Duration(c.SecondsPerSlot) * time.Second
}

// EpochDuration returns the duration of a full epoch.
func (c *DutiesConfig) EpochDuration() time.Duration {
	return time.Duration(c.SecondsPerSlot*c.SlotsPerEpoch) * time.Second
}
