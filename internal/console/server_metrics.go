package console

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessMetrics сведения о процессе для /api/server
type ProcessMetrics struct {
	StartTime time.Time
	proc      *process.Process
}

// ProcessSnapshot снимок ресурсов процесса
type ProcessSnapshot struct {
	Uptime     string  `json:"uptime"`
	HeapMB     float64 `json:"heap_mb"`
	RSSMB      float64 `json:"rss_mb,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
	NumGC      uint32  `json:"num_gc"`
}

// NewProcessMetrics создаёт сборщик для текущего процесса
func NewProcessMetrics() *ProcessMetrics {
	pm := &ProcessMetrics{StartTime: time.Now()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		pm.proc = p
	}
	return pm
}

// Uptime время работы в виде "1д 2ч 3м 4с"
func (pm *ProcessMetrics) Uptime() string {
	uptime := time.Since(pm.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// CPUPercent загрузка CPU процессом; если метрика процесса недоступна, берётся системная
func (pm *ProcessMetrics) CPUPercent() float64 {
	if pm.proc != nil {
		if pct, err := pm.proc.CPUPercent(); err == nil {
			return pct
		}
	}
	pcts, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(pcts) == 0 {
		return 0
	}
	return pcts[0]
}

// Snapshot собирает текущие показатели
func (pm *ProcessMetrics) Snapshot() ProcessSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := ProcessSnapshot{
		Uptime:     pm.Uptime(),
		HeapMB:     float64(m.HeapAlloc) / 1024 / 1024,
		CPUPercent: pm.CPUPercent(),
		Goroutines: runtime.NumGoroutine(),
		NumGC:      m.NumGC,
	}
	if pm.proc != nil {
		if mem, err := pm.proc.MemoryInfo(); err == nil {
			snap.RSSMB = float64(mem.RSS) / 1024 / 1024
		}
	}
	return snap
}
