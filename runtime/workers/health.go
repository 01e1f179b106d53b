package workers

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/contract"
	"chat-relay/observability"
)

var _ contract.Worker = (*HealthWorker)(nil)

// HealthWorker periodically logs process self-stats and relay counters.
type HealthWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, metrics *observability.Metrics, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, metrics: metrics, interval: interval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay health worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.metrics.GetLatest()
			w.log.Info("Relay health",
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"goroutines", goruntime.NumGoroutine(),
				"connects", stats.Connects,
				"disconnects", stats.Disconnects,
				"messages_relayed", stats.MessagesRelayed,
				"delivered_live", stats.DeliveredLive,
				"offline_skips", stats.OfflineSkips,
				"invalid_messages", stats.InvalidMessages,
				"storage_failures", stats.StorageFailures,
				"typing_relayed", stats.TypingRelayed,
				"typing_dropped", stats.TypingDropped,
				"presence_broadcasts", stats.PresenceBroadcasts,
			)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS status) for
// the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
