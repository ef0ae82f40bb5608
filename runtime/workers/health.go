package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-relay/observability"

	"github.com/shirou/gopsutil/process"
)

// HealthWorker samples the relay process itself (RSS, CPU) on an interval
// and publishes the readings to the prometheus gauges and the log. It backs
// the operator dashboards; nothing on the delivery path depends on it.
type HealthWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, metrics *observability.Metrics, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, metrics: metrics, interval: interval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			memInfo, err := p.MemoryInfo()
			if err != nil {
				w.log.Debug("memory stats unavailable", "error", err)
				continue
			}
			cpuPercent, err := p.CPUPercent()
			if err != nil {
				w.log.Debug("cpu stats unavailable", "error", err)
				continue
			}
			w.metrics.ProcessRSSBytes.Set(float64(memInfo.RSS))
			w.metrics.ProcessCPUPercent.Set(cpuPercent)
			w.log.Debug("health sample", "rss_bytes", memInfo.RSS, "cpu_percent", cpuPercent)
		}
	}
}
