package sys

import (
	"go.uber.org/zap"

	"github.com/helixos/kernel/internal/infrastructure/config"
	"github.com/helixos/kernel/internal/infrastructure/logging"
	"github.com/helixos/kernel/internal/infrastructure/monitoring"
	"github.com/helixos/kernel/internal/shared/koid"
	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/process"
)

// Kernel aggregates the services every operation needs: configuration,
// logging, metrics, and koid allocation. One Kernel is one kernel
// instance; there is no package-level state.
type Kernel struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics
	koids   *koid.Allocator
}

// New creates a kernel instance. A nil cfg uses defaults; a nil logger
// discards output.
func New(cfg *config.Config, log *logging.Logger) *Kernel {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Kernel{
		cfg:     cfg,
		log:     log.Named("kernel"),
		metrics: monitoring.NewMetrics(),
		koids:   koid.NewAllocator(),
	}
}

// Metrics exposes the kernel's metrics for scraping.
func (k *Kernel) Metrics() *monitoring.Metrics { return k.metrics }

// CreateProcess creates a process context with an empty handle table.
func (k *Kernel) CreateProcess(name string) *process.Process {
	pid := k.koids.Allocate()
	k.metrics.ObjectsTotal.WithLabelValues(object.TypeProcess.String()).Inc()
	k.metrics.ObjectsLive.WithLabelValues(object.TypeProcess.String()).Inc()
	k.log.Debug("process created",
		zap.Uint64("pid", uint64(pid)),
		zap.String("name", name))
	return process.New(pid, name, k.cfg.Limits.MaxHandlesPerProcess, k.log, k.metrics)
}

// trackObject records creation metrics for a kernel object.
func (k *Kernel) trackObject(typ object.Type) {
	k.metrics.ObjectsTotal.WithLabelValues(typ.String()).Inc()
	k.metrics.ObjectsLive.WithLabelValues(typ.String()).Inc()
}
