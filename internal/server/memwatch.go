package server

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/adred-codev/kvstore/internal/logging"
	"github.com/adred-codev/kvstore/internal/metrics"
)

// sampleMemory records the process's resident set size and, when
// maxMemoryBytes is configured (spec §3's maxmemory soft cap, advisory
// only), logs when usage exceeds it. Generalized from the teacher's
// ResourceGuard, which samples the same way but for CPU-based
// connection throttling; here there is nothing to throttle, only
// something to report.
func sampleMemory(log *logging.Sink, m *metrics.Metrics, maxMemoryBytes int64) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		if log != nil {
			log.Error(err, "failed to open process handle for memory sampling", nil)
		}
		return
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		if log != nil {
			log.Error(err, "failed to read process memory info", nil)
		}
		return
	}
	if m != nil {
		m.MemoryUsageBytes.Set(float64(info.RSS))
	}
	if maxMemoryBytes > 0 && int64(info.RSS) > maxMemoryBytes && log != nil {
		log.Info("resident memory exceeds configured maxmemory", map[string]any{
			"rss_bytes":       info.RSS,
			"maxmemory_bytes": maxMemoryBytes,
		})
	}
}
