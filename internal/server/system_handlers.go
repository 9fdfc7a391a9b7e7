package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tradefolio/tracker/internal/database"
)

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
	Symbols() []string
}

// JobLister reports scheduled jobs
type JobLister interface {
	Jobs() []string
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status           string                     `json:"status"`
	StartedAt        string                     `json:"started_at"`
	UptimeSeconds    int64                      `json:"uptime_seconds"`
	Goroutines       int                        `json:"goroutines"`
	CPUPercent       float64                    `json:"cpu_percent"`
	MemoryPercent    float64                    `json:"memory_percent"`
	HeapAllocMB      float64                    `json:"heap_alloc_mb"`
	WebsocketClients int                        `json:"websocket_clients"`
	StreamedSymbols  []string                   `json:"streamed_symbols"`
	Jobs             []string                   `json:"jobs"`
	Databases        map[string]*database.Stats `json:"databases"`
}

// SystemHandlers serves process and database monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	clients     ClientCounter
	jobs        JobLister
	databases   []*database.DB

	hostStats func() (float64, float64)
}

// NewSystemHandlers creates system handlers; clients and jobs may be nil
func NewSystemHandlers(log zerolog.Logger, clients ClientCounter, jobs JobLister, databases ...*database.DB) *SystemHandlers {
	h := &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		clients:     clients,
		jobs:        jobs,
		databases:   databases,
	}
	h.hostStats = h.getSystemStats
	return h
}

// HandleSystemStatus returns uptime, host load and database statistics
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.hostStats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := SystemStatusResponse{
		Status:          "running",
		StartedAt:       h.startupTime.UTC().Format(time.RFC3339),
		UptimeSeconds:   int64(time.Since(h.startupTime).Seconds()),
		Goroutines:      runtime.NumGoroutine(),
		CPUPercent:      cpuPercent,
		MemoryPercent:   memPercent,
		HeapAllocMB:     float64(memStats.HeapAlloc) / 1024 / 1024,
		StreamedSymbols: []string{},
		Jobs:            []string{},
		Databases:       make(map[string]*database.Stats, len(h.databases)),
	}

	if h.clients != nil {
		response.WebsocketClients = h.clients.ClientCount()
		if symbols := h.clients.Symbols(); symbols != nil {
			response.StreamedSymbols = symbols
		}
	}
	if h.jobs != nil {
		response.Jobs = h.jobs.Jobs()
		sort.Strings(response.Jobs)
	}

	for _, db := range h.databases {
		if db == nil {
			continue
		}
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			response.Status = "degraded"
			continue
		}
		response.Databases[db.Name()] = stats
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode status response")
	}
}

// getSystemStats samples CPU over 100ms and reads memory usage instantly
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}
