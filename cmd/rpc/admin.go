package rpc

import (
	"net/http"
	"os"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage retrieves the resource usage of the vault process and its host
func (s *Server) ResourceUsage(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	usage, err := resourceUsage(s.config.DataDirPath)
	if err != nil {
		writeError(w, ErrResourceUsage(err))
		return
	}
	write(w, usage, http.StatusOK)
}

// resourceUsage samples the os and process counters, disk usage is measured on the volume of dataDir
func resourceUsage(dataDir string) (*ResourceUsageResponse, error) {
	pm, err := mem.VirtualMemory() // os memory
	if err != nil {
		return nil, err
	}
	c, err := cpu.Times(false) // os cpu
	if err != nil {
		return nil, err
	}
	cp, err := cpu.Percent(0, false) // os cpu percent
	if err != nil {
		return nil, err
	}
	if dataDir == "" {
		dataDir = "/"
	}
	d, err := disk.Usage(dataDir) // os disk
	if err != nil {
		return nil, err
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	name, err := p.Name()
	if err != nil {
		return nil, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return nil, err
	}
	ioCounters, err := net.IOCounters(false)
	if err != nil {
		return nil, err
	}
	status, err := p.Status()
	if err != nil {
		return nil, err
	}
	fds, err := p.NumFDs()
	if err != nil {
		return nil, err
	}
	numThreads, err := p.NumThreads()
	if err != nil {
		return nil, err
	}
	memPercent, err := p.MemoryPercent()
	if err != nil {
		return nil, err
	}
	utc, err := p.CreateTime()
	if err != nil {
		return nil, err
	}
	usage := &ResourceUsageResponse{
		Process: ProcessResourceUsage{
			Name:          name,
			CreateTime:    time.UnixMilli(utc).Format(time.RFC822),
			FDCount:       uint64(fds),
			ThreadCount:   uint64(numThreads),
			MemoryPercent: float64(memPercent),
			CPUPercent:    cpuPercent,
		},
		System: SystemResourceUsage{
			TotalRAM:        pm.Total,
			AvailableRAM:    pm.Available,
			UsedRAM:         pm.Used,
			UsedRAMPercent:  pm.UsedPercent,
			FreeRAM:         pm.Free,
			TotalDisk:       d.Total,
			UsedDisk:        d.Used,
			UsedDiskPercent: d.UsedPercent,
			FreeDisk:        d.Free,
		},
	}
	if len(status) != 0 {
		usage.Process.Status = status[0]
	}
	if len(cp) != 0 {
		usage.System.UsedCPUPercent = cp[0]
	}
	if len(c) != 0 {
		usage.System.UserCPU, usage.System.SystemCPU, usage.System.IdleCPU = c[0].User, c[0].System, c[0].Idle
	}
	// the aggregate counter is missing on some platforms
	if len(ioCounters) != 0 {
		usage.System.ReceivedBytesIO, usage.System.WrittenBytesIO = ioCounters[0].BytesRecv, ioCounters[0].BytesSent
	}
	return usage, nil
}
