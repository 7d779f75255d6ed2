// Package dutylog renders the upcoming-duty tables to the console with
// colour thresholds and validator aliases.
package dutylog

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethduties/eth-duties/duties"
	"github.com/ethduties/eth-duties/time/slots"
	"github.com/ethduties/eth-duties/validator/registry"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "dutylog")

// Config carries the user-facing rendering options.
type Config struct {
	LogPubkeys     bool
	TimeWarning    int64
	TimeCritical   int64
	ColorWarning   RGB
	ColorCritical  RGB
	ColorProposing RGB
}

// Logger renders one duty line per tracked validator each interval.
type Logger struct {
	clock *slots.Clock
	reg   *registry.Registry
	cfg   Config
}

// New builds a duty logger over the clock and registry.
func New(clock *slots.Clock, reg *registry.Registry, cfg Config) *Logger {
	return &Logger{clock: clock, reg: reg, cfg: cfg}
}

// LogCycle renders a whole duty snapshot. SecondsToDuty is expected to be
// freshly computed by the store.
func (l *Logger) LogCycle(dutyList []duties.Duty) {
	log.Info("Logging next duties interval...")
	if len(dutyList) == 0 {
		log.Info("No upcoming duties detected!")
		return
	}
	withAlias := l.reg.ActiveWithAlias()
	for _, duty := range dutyList {
		log.Info(l.renderDuty(duty, withAlias))
	}
	l.logProportionAboveWarning(dutyList)
}

func (l *Logger) renderDuty(duty duties.Duty, withAlias map[string]registry.Identifier) string {
	if duty.Type == duties.SyncCommittee {
		return l.renderSyncCommitteeDuty(duty, withAlias)
	}
	if duty.SecondsToDuty < 0 {
		return fmt.Sprintf("Upcoming %s duty for validator %s outdated. Fetching duties in next interval.",
			dutyTypeName(duty.Type), l.displayIdentifier(duty, withAlias))
	}
	return fmt.Sprintf("%sValidator %s has next %s duty in: %s min. (slot: %d)%s",
		l.dutyColor(duty),
		l.displayIdentifier(duty, withAlias),
		dutyTypeName(duty.Type),
		formatMinutesSeconds(duty.SecondsToDuty),
		duty.Slot,
		colorReset,
	)
}

func (l *Logger) renderSyncCommitteeDuty(duty duties.Duty, withAlias map[string]registry.Identifier) string {
	currentEpoch := l.clock.CurrentEpoch()
	nextPeriodStart := slots.SyncPeriodCeil(currentEpoch)
	timeToNext := duty.SecondsToDuty
	if timeToNext <= 0 {
		timeToNext = int64(l.clock.UntilNextSyncPeriod().Seconds())
	}
	if duty.SecondsToDuty == 0 {
		return fmt.Sprintf("%sValidator %s is in current sync committee (next sync committee starts in %s / epoch: %d)%s",
			l.cfg.ColorCritical.Background(),
			l.displayIdentifier(duty, withAlias),
			formatHoursMinutesSeconds(timeToNext),
			nextPeriodStart,
			colorReset,
		)
	}
	return fmt.Sprintf("%sValidator %s will be in next sync committee which starts in %s (epoch: %d)%s",
		l.cfg.ColorWarning.Background(),
		l.displayIdentifier(duty, withAlias),
		formatHoursMinutesSeconds(timeToNext),
		nextPeriodStart,
		colorReset,
	)
}

func (l *Logger) displayIdentifier(duty duties.Duty, withAlias map[string]registry.Identifier) string {
	if id, ok := withAlias[duty.ValidatorIndex]; ok && id.Alias != "" {
		return id.Alias
	}
	if l.cfg.LogPubkeys {
		return duty.Pubkey
	}
	return duty.ValidatorIndex
}

func (l *Logger) dutyColor(duty duties.Duty) string {
	s := duty.SecondsToDuty
	if s > l.cfg.TimeCritical && s <= l.cfg.TimeWarning {
		return l.cfg.ColorWarning.Background()
	}
	if s <= l.cfg.TimeCritical {
		return l.cfg.ColorCritical.Background()
	}
	if duty.Type == duties.Proposing {
		return l.cfg.ColorProposing.Background()
	}
	return ""
}

func (l *Logger) logProportionAboveWarning(dutyList []duties.Duty) {
	proportion := ProportionAboveThreshold(dutyList, l.cfg.TimeWarning)
	log.Infof("%.2f%% of all duties will be executed in %d sec. or later",
		proportion*100, l.cfg.TimeWarning)
}

// ProportionAboveThreshold returns the fraction of duties whose time to
// execution is at least the threshold.
func ProportionAboveThreshold(dutyList []duties.Duty, threshold int64) float64 {
	if len(dutyList) == 0 {
		return 0
	}
	above := 0
	for _, duty := range dutyList {
		if duty.SecondsToDuty >= threshold {
			above++
		}
	}
	return float64(above) / float64(len(dutyList))
}

func dutyTypeName(t duties.DutyType) string {
	return strings.ToUpper(t.String())
}

func formatMinutesSeconds(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func formatHoursMinutesSeconds(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
