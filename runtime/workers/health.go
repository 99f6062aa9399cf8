package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"

	"chat-relay/runtime"
)

// HealthWorker periodically logs self-process resource usage together with
// the presence gauge, giving a coarse view of the engine's load without an
// external metrics stack.
type HealthWorker struct {
	log      *slog.Logger
	registry *runtime.Registry
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, registry *runtime.Registry,
	interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, registry: registry, interval: interval}
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
			w.log.Debug("Context done, stopping health worker")
			return nil
		case <-ticker.C:
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			mem, err := p.MemoryInfo()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}

			w.log.Info("engine health",
				"sessions", w.registry.CountSessions(),
				"cpu_percent", cpu,
				"rss_bytes", mem.RSS,
			)
		}
	}
}
