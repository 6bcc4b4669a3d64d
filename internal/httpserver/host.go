package httpserver

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostView is the read-only host telemetry view (SPEC_FULL.md §2
// "Host telemetry view"), reachable only through the out-of-scope
// "Host-OS telemetry readers" contract named in spec.md §1: the core
// never imports gopsutil itself, only this HTTP-layer handler does.
// Grounded on the corpus's resource-monitoring service (cnet's
// internal/agent/resources, which samples the same three gopsutil
// subpackages for an analogous "/resources" view).
type hostView struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemTotal    uint64  `json:"mem_total"`
	MemUsed     uint64  `json:"mem_used"`
	MemPercent  float64 `json:"mem_percent"`
	UptimeSec   uint64  `json:"uptime_sec"`
	ProcessName string  `json:"process_name"`
}

func (rt *Runtime) handleHost(w http.ResponseWriter, r *http.Request) {
	var view hostView

	if pct, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(pct) > 0 {
		view.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		view.MemTotal = vm.Total
		view.MemUsed = vm.Used
		view.MemPercent = vm.UsedPercent
	}
	if up, err := host.Uptime(); err == nil {
		view.UptimeSec = up
	}
	view.ProcessName = "ciraedge"

	respondWithJSON(w, http.StatusOK, view)
}
