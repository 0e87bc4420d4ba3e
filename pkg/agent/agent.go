package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dushixiang/kestrel/pkg/agent/collector"
	"github.com/jpillora/backoff"
)

// Config 探针配置。日志不在这里配置，由入口在构造探针前通过 InitLogger 初始化。
type Config struct {
	ServerURL string        // 服务端地址，如 http://127.0.0.1:8080
	Interval  time.Duration // 采样间隔
	DiskPath  string        // 磁盘统计的挂载点
	Hostname  string        // 覆盖主机名（为空时使用系统主机名）
}

// Agent 采集探针：定期采样并推送到服务端的摄入接口。
// 服务端失败时由探针负责退避重试，核心不做自动重试。
type Agent struct {
	cfg        Config
	httpClient *http.Client
	collector  *collector.SystemCollector
}

func New(cfg Config) *Agent {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Agent{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		collector: collector.NewSystemCollector(cfg.DiskPath),
	}
}

// Start 启动采集循环，阻塞直到 ctx 取消
func (a *Agent) Start(ctx context.Context) error {
	slog.Info("探针启动",
		"server", a.cfg.ServerURL,
		"interval", a.cfg.Interval.String())

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	// 启动后立刻上报一次
	a.collectAndPush(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("探针退出")
			return ctx.Err()
		case <-ticker.C:
			a.collectAndPush(ctx)
		}
	}
}

// collectAndPush 采集一次并推送，推送失败时在本轮内退避重试
func (a *Agent) collectAndPush(ctx context.Context) {
	report, err := a.collector.Collect(ctx)
	if err != nil {
		slog.Warn("采集失败", "error", err)
		return
	}
	if a.cfg.Hostname != "" {
		report.Hostname = a.cfg.Hostname
	}

	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Jitter: true,
	}

	// 最多重试3次，仍失败则丢弃本次采样等待下一轮
	for attempt := 0; attempt < 3; attempt++ {
		err = a.push(ctx, report)
		if err == nil {
			slog.Debug("上报成功", "hostname", report.Hostname)
			return
		}

		wait := b.Duration()
		slog.Warn("上报失败，等待重试",
			"error", err,
			"wait", wait.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	slog.Error("上报重试次数耗尽，丢弃本次采样", "error", err)
}

// push 向服务端摄入接口提交一次采样
func (a *Agent) push(ctx context.Context, report *collector.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	url := a.cfg.ServerURL + "/api/measurements"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("服务端返回 %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
