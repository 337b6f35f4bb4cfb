package api

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics снимки состояния процесса для /api/stats
type ServerMetrics struct {
	startTime time.Time

	procOnce sync.Once
	proc     *process.Process
	procErr  error
}

// ProcessStats снимок ресурсов процесса
type ProcessStats struct {
	Uptime      string  `json:"uptime"`
	CPUPercent  float64 `json:"cpu_percent"`
	RSSMB       float64 `json:"rss_mb"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	HeapSysMB   float64 `json:"heap_sys_mb"`
	NumGC       uint32  `json:"num_gc"`
	Goroutines  int     `json:"goroutines"`
	ServerTime  int64   `json:"server_time"`
}

func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{startTime: time.Now()}
}

// GetUptime время работы в виде "1д 2ч 3м 4с"
func (sm *ServerMetrics) GetUptime() string {
	return formatUptime(time.Since(sm.startTime))
}

func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	days, hours := total/86400, total/3600%24
	minutes, seconds := total/60%60, total%60

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

func (sm *ServerMetrics) process() (*process.Process, error) {
	sm.procOnce.Do(func() {
		sm.proc, sm.procErr = process.NewProcess(int32(os.Getpid()))
	})
	return sm.proc, sm.procErr
}

// cpuPercent загрузка CPU процессом; при ошибке системная загрузка
func (sm *ServerMetrics) cpuPercent() float64 {
	if proc, err := sm.process(); err == nil {
		if pct, err := proc.CPUPercent(); err == nil {
			return pct
		}
	}
	pcts, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(pcts) == 0 {
		return 0
	}
	return pcts[0]
}

func (sm *ServerMetrics) rssMB() float64 {
	proc, err := sm.process()
	if err != nil {
		return 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return 0
	}
	return toMB(mem.RSS)
}

// Snapshot собирает ProcessStats
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ProcessStats{
		Uptime:      sm.GetUptime(),
		CPUPercent:  sm.cpuPercent(),
		RSSMB:       sm.rssMB(),
		HeapAllocMB: toMB(m.HeapAlloc),
		HeapSysMB:   toMB(m.HeapSys),
		NumGC:       m.NumGC,
		Goroutines:  runtime.NumGoroutine(),
		ServerTime:  time.Now().Unix(),
	}
}

func toMB(b uint64) float64 { return float64(b) / 1024 / 1024 }
