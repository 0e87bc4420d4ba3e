package collector

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Report 一次完整采样，与服务端摄入接口的请求体一一对应
type Report struct {
	Hostname        string  `json:"hostname"`
	IP              string  `json:"ip"`
	OS              string  `json:"os"`
	CPUUsagePercent float64 `json:"cpuUsagePercent"`
	RAMUsedMB       uint64  `json:"ramUsedMB"`
	RAMTotalMB      uint64  `json:"ramTotalMB"`
	DiskUsedGB      float64 `json:"diskUsedGB"`
	DiskTotalGB     float64 `json:"diskTotalGB"`
	UptimeMinutes   uint64  `json:"uptimeMinutes"`
}

// SystemCollector 本机硬件健康采集器
type SystemCollector struct {
	diskPath string // 磁盘统计的挂载点
}

func NewSystemCollector(diskPath string) *SystemCollector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemCollector{diskPath: diskPath}
}

// Collect 采集一次 CPU/内存/磁盘/运行时间，并附带主机名、IP 和操作系统
func (c *SystemCollector) Collect(ctx context.Context) (*Report, error) {
	report := &Report{}

	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	report.Hostname = hostInfo.Hostname
	report.OS = hostInfo.Platform
	if report.OS == "" {
		report.OS = hostInfo.OS
	}
	report.UptimeMinutes = hostInfo.Uptime / 60

	// CPU使用率需要一个采样间隔
	percents, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return nil, err
	}
	if len(percents) > 0 {
		report.CPUUsagePercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	report.RAMUsedMB = vm.Used / 1024 / 1024
	report.RAMTotalMB = vm.Total / 1024 / 1024

	usage, err := disk.UsageWithContext(ctx, c.diskPath)
	if err != nil {
		return nil, err
	}
	report.DiskUsedGB = float64(usage.Used) / 1024 / 1024 / 1024
	report.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024

	report.IP = localIP()
	if report.Hostname == "" {
		report.Hostname, _ = os.Hostname()
	}

	return report, nil
}

// localIP 探测本机对外的IP地址，失败时返回空字符串
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}
