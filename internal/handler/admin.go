package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"smartbuy-api/internal/lock"
	"smartbuy-api/internal/model"
	"smartbuy-api/pkg/response"
)

// StatsSource reports row counts of the data store.
type StatsSource interface {
	Stats(ctx context.Context) (*model.StoreStats, error)
}

// AdminHandler serves operational statistics.
type AdminHandler struct {
	stats       StatsSource
	locks       lock.Lister // nil when the lock backend cannot list
	lockBackend string
	startTime   time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(stats StatsSource, locks lock.Lister, lockBackend string) *AdminHandler {
	return &AdminHandler{
		stats:       stats,
		locks:       locks,
		lockBackend: lockBackend,
		startTime:   time.Now(),
	}
}

// GetStats handles GET /api/v1/internal/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]any)

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().UTC().Format(time.RFC3339)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]any{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if counts, err := h.stats.Stats(ctx); err == nil {
		stats["store"] = counts
	} else {
		stats["store"] = map[string]any{"status": "error", "error": err.Error()}
	}

	locks := map[string]any{"backend": h.lockBackend}
	if h.locks == nil {
		locks["status"] = "not_supported"
	} else if held, err := h.locks.ListLocks(ctx); err == nil {
		locks["held"] = held
	} else {
		locks["status"] = "error"
		locks["error"] = err.Error()
	}
	stats["locks"] = locks

	stats["runtime"] = map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
