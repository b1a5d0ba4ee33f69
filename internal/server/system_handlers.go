package server

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/bazaar-tracker/internal/database"
	"github.com/aristath/bazaar-tracker/internal/httputil"
	"github.com/aristath/bazaar-tracker/internal/reliability"
	"github.com/aristath/bazaar-tracker/internal/scheduler"
)

// SystemHandlers serves status, maintenance and job endpoints
type SystemHandlers struct {
	dataDir   string
	databases []*database.DB
	scheduler *scheduler.Scheduler
	backup    *reliability.BackupService
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases []*database.DB,
	sched *scheduler.Scheduler,
	backup *reliability.BackupService,
) *SystemHandlers {
	return &SystemHandlers{
		dataDir:   dataDir,
		databases: databases,
		scheduler: sched,
		backup:    backup,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// DatabaseStatus reports one database's health and size
type DatabaseStatus struct {
	Name    string          `json:"name"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	GoVersion     string           `json:"go_version"`
	Goroutines    int              `json:"goroutines"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	DiskFreeMB    float64          `json:"disk_free_mb"`
	Databases     []DatabaseStatus `json:"databases"`
	Jobs          []string         `json:"jobs"`
	LastChecked   string           `json:"last_checked"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DiskFreeMB:    h.getDiskFree(),
		Databases:     h.databaseStatuses(r.Context(), false),
		Jobs:          h.jobNames(),
		LastChecked:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, db := range response.Databases {
		if !db.Healthy {
			response.Status = "degraded"
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases":    h.databaseStatuses(r.Context(), true),
		"last_checked": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.jobNames(),
	})
}

// HandleRunJob handles POST /api/system/jobs/{name}/run. The job runs synchronously.
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := time.Now()

	if err := h.scheduler.RunByName(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		h.writeError(w, httputil.StatusFor(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// HandleBackup handles POST /api/system/backup
func (h *SystemHandlers) HandleBackup(w http.ResponseWriter, r *http.Request) {
	result, err := h.backup.CreateBackup(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Backup failed")
		if result != nil {
			// Local archive exists; only the upload failed
			h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":  err.Error(),
				"backup": result,
			})
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleListBackups handles GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backup.ListBackups()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if backups == nil {
		backups = []reliability.BackupInfo{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

func (h *SystemHandlers) databaseStatuses(ctx context.Context, withStats bool) []DatabaseStatus {
	statuses := make([]DatabaseStatus, 0, len(h.databases))
	for _, db := range h.databases {
		if db == nil {
			continue
		}
		status := DatabaseStatus{Name: db.Name(), Healthy: true}
		if err := db.HealthCheck(ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
		}
		if withStats {
			stats, err := db.GetStats()
			if err != nil {
				h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			} else {
				status.Stats = stats
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (h *SystemHandlers) jobNames() []string {
	if h.scheduler == nil {
		return []string{}
	}
	names := h.scheduler.JobNames()
	sort.Strings(names)
	return names
}

// getSystemStats returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) getDiskFree() float64 {
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to get disk usage")
		return 0
	}
	return float64(usage.Free) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, httputil.ErrorBody{Error: message})
}
