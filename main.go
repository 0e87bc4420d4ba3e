package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dushixiang/kestrel/internal/config"
	"github.com/dushixiang/kestrel/internal/server"
	"github.com/dushixiang/kestrel/pkg/agent"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kestrel",
		Short: "机器硬件健康监控：采集、规则告警与统计看板",
	}

	rootCmd.AddCommand(newServerCmd(), newAgentCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServerCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "启动服务端",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return server.Run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")
	return cmd
}

func newAgentCmd() *cobra.Command {
	var (
		serverURL string
		interval  time.Duration
		diskPath  string
		hostname  string
		logLevel  string
		logFile   string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "启动采集探针",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				return fmt.Errorf("必须指定服务端地址 --server")
			}

			agent.InitLogger(agent.LogConfig{
				Level:      logLevel,
				File:       logFile,
				MaxSize:    50,
				MaxBackups: 3,
				MaxAge:     14,
			})

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a := agent.New(agent.Config{
				ServerURL: serverURL,
				Interval:  interval,
				DiskPath:  diskPath,
				Hostname:  hostname,
			})
			if err := a.Start(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "服务端地址，如 http://127.0.0.1:8080")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Minute, "采样间隔")
	cmd.Flags().StringVar(&diskPath, "disk", "/", "磁盘统计的挂载点")
	cmd.Flags().StringVar(&hostname, "hostname", "", "覆盖主机名")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "日志级别")
	cmd.Flags().StringVar(&logFile, "log-file", "", "日志文件路径")
	return cmd
}
