// Package bootstrap wires together kubeportald's process-wide singletons
// (C2 access cache, C4 manager) and the transports that sit in front of
// them (C7 gRPC, C8 MCP, C10 HTTP status), mirroring the way the teacher's
// internal/app package builds a Services bundle and runs it to
// completion under signal control.
package bootstrap

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kubeportal/kubeportal/internal/appdir"
	"github.com/kubeportal/kubeportal/internal/kube"
	"github.com/kubeportal/kubeportal/internal/lockfile"
	"github.com/kubeportal/kubeportal/internal/manager"
	"github.com/kubeportal/kubeportal/internal/rpcapi"
	"github.com/kubeportal/kubeportal/internal/settings"
	"github.com/kubeportal/kubeportal/internal/transport/grpcapi"
	"github.com/kubeportal/kubeportal/internal/transport/httpapi"
	"github.com/kubeportal/kubeportal/internal/transport/mcpapi"
	"github.com/kubeportal/kubeportal/pkg/logging"
)

// Config holds the flags the CLI layer collects before calling Run.
type Config struct {
	Version        string
	SettingsPath   string // empty uses the default app-data location
	ConfigPath     string // empty uses the default app-data location
	Foreground     bool
}

// Run performs the full daemon bootstrap sequence and blocks until the
// process receives SIGINT/SIGTERM or an unrecoverable transport error
// occurs, then stops the config watcher and every forwarder, shuts down
// the transports, and releases the lock file.
func Run(cfg Config) error {
	dir, err := appdir.Dir()
	if err != nil {
		return fmt.Errorf("resolving app data directory: %w", err)
	}

	settingsPath := cfg.SettingsPath
	if settingsPath == "" {
		settingsPath = appdir.SettingsPath(dir)
	}
	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = appdir.ConfigPath(dir)
	}

	daemonSettings, err := settings.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	logging.Init(logging.ParseLevel(daemonSettings.LogLevel), os.Stderr)

	if !cfg.Foreground {
		logging.Warn("bootstrap", "background mode requested but kubeportald never self-detaches; run it under a service manager (systemd, launchd) for that")
	}

	lockPort := rpcPortOrDefault(daemonSettings.RPCListenAddress)
	lock, err := lockfile.Acquire(appdir.LockPath(dir, lockPort))
	if err != nil {
		return fmt.Errorf("acquiring lock file: %w", err)
	}
	defer lock.Release()

	cache := kube.New(daemonSettings.KubeClientTTL, daemonSettings.PodListTTL, nil)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	cache.StartSweeper(sweepCtx)

	mgr := manager.New(configPath, cache, daemonSettings.ConnectionGraceTimeout, true)
	if err := mgr.Initialize(); err != nil {
		return fmt.Errorf("initializing forward manager: %w", err)
	}
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	mgr.WatchConfig(watchCtx)
	defer mgr.StopWatching()

	startedAt := time.Now()
	shutdownRequested := make(chan struct{}, 1)
	signalShutdown := func() {
		select {
		case shutdownRequested <- struct{}{}:
		default:
		}
	}
	adapter := rpcapi.New(mgr, cfg.Version, startedAt, signalShutdown)

	grpcServer := grpcapi.New(daemonSettings.RPCListenAddress, adapter)
	grpcErrCh := grpcServer.Start()
	logging.Info("bootstrap", "gRPC transport listening on %s", daemonSettings.RPCListenAddress)

	httpServer := httpapi.New(daemonSettings.HTTPListenAddress, adapter)
	httpErrCh := httpServer.Start()
	logging.Info("bootstrap", "HTTP status transport listening on %s", daemonSettings.HTTPListenAddress)

	var mcpServer *mcpapi.Server
	var mcpErrCh <-chan error
	if daemonSettings.MCPListenAddress != "" {
		mcpServer = mcpapi.New(daemonSettings.MCPListenAddress, adapter)
		mcpErrCh = mcpServer.Start()
		logging.Info("bootstrap", "MCP transport listening on %s", daemonSettings.MCPListenAddress)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logging.Info("bootstrap", "received signal %s, shutting down", sig)
	case <-shutdownRequested:
		logging.Info("bootstrap", "shutdown requested over RPC")
	case err := <-grpcErrCh:
		if err != nil {
			logging.Error("bootstrap", err, "gRPC transport exited unexpectedly")
		}
	case err := <-httpErrCh:
		if err != nil {
			logging.Error("bootstrap", err, "HTTP transport exited unexpectedly")
		}
	case err := <-mcpErrCh:
		if err != nil {
			logging.Error("bootstrap", err, "MCP transport exited unexpectedly")
		}
	}

	mgr.StopWatching()
	mgr.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("bootstrap", err, "shutting down HTTP transport")
	}
	if mcpServer != nil {
		if err := mcpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("bootstrap", err, "shutting down MCP transport")
		}
	}

	logging.Info("bootstrap", "shutdown complete")
	return nil
}

func rpcPortOrDefault(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 50051
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return 50051
	}
	return port
}
