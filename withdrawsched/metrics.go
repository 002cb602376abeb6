package withdrawsched

import (
	"time"

	"github.com/hashicorp/go-metrics"

	"github.com/cosmos/cosmos-sdk/telemetry"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

const (
	metricKeySchedule   = "schedule_withdraws"
	metricKeySettle     = "settle_balances"
	metricKeyResolution = "resolution"
	metricKeyWatermark  = "settled_watermark"
	metricKeyPruned     = "pruned_txs"
)

func (s *Scheduler) measureSince(start time.Time, key string) {
	if !s.cfg.MetricsEnabled {
		return
	}
	telemetry.ModuleMeasureSince(types.ModuleName, start, key)
}

func (s *Scheduler) emitResolution(result types.ScheduleResult) {
	if !s.cfg.MetricsEnabled {
		return
	}
	telemetry.IncrCounterWithLabels(
		[]string{types.ModuleName, metricKeyResolution},
		1,
		[]metrics.Label{telemetry.NewLabel("result", result.String())},
	)
}

func (s *Scheduler) emitWatermark(watermark types.Version) {
	if !s.cfg.MetricsEnabled {
		return
	}
	telemetry.SetGauge(float32(watermark), types.ModuleName, metricKeyWatermark)
}

func (s *Scheduler) emitPruned(expired int) {
	if !s.cfg.MetricsEnabled || expired == 0 {
		return
	}
	telemetry.IncrCounter(float32(expired), types.ModuleName, metricKeyPruned)
}
