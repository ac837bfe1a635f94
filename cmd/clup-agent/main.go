// Command clup-agent is the node-resident management agent: it
// registers this host with a central controller, then serves the
// authenticated RPC surface the controller drives to run shell
// commands, move files and WAL segments, and manage mounts/VIPs.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/csudata/clup-agent/pkg/agentconn"
	"github.com/csudata/clup-agent/pkg/chp"
	"github.com/csudata/clup-agent/pkg/cft"
	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/controller"
	"github.com/csudata/clup-agent/pkg/logging"
	"github.com/csudata/clup-agent/pkg/ltc"
	"github.com/csudata/clup-agent/pkg/metrics"
	"github.com/csudata/clup-agent/pkg/osutil"
	"github.com/csudata/clup-agent/pkg/rpcserver"
	"github.com/csudata/clup-agent/pkg/shutdown"
)

var (
	logLevel   string
	foreground bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "clup-agent",
	Short:   "clup-agent is the host-resident PostgreSQL cluster management agent",
	Version: osutil.AgentVersion,
}

func init() {
	rootCmd.SetVersionTemplate(osutil.CopyrightMessage() + "\n")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "info", "debug, info, warn, error, critical")

	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground instead of daemonizing")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, regServiceCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(osutil.CopyrightMessage())
	},
}

func loadConfig() *config.Store {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: level, JSONOutput: !foreground})
	return cfg
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start the agent",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		if errCode, _ := osutil.StatusDaemon(cfg.PIDFile()); errCode == 0 {
			logging.Critical("clup-agent is already running")
			os.Exit(1)
		}

		if !foreground {
			logFile := filepath.Join(cfg.LogPath(), "clup-agent.log")
			if err := osutil.Daemonize(logFile); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}

		if err := osutil.WritePIDFile(cfg.PIDFile()); err != nil {
			logging.Errorf(err, "write pid file")
			os.Exit(1)
		}

		logging.Info(osutil.CopyrightMessage())
		logging.Info("========== clup-agent starting ==========")
		runAgent(cfg)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop the agent",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := osutil.StopDaemon(cfg.PIDFile(), 1, time.Second); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show whether the agent is running",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		errCode, msg := osutil.StatusDaemon(cfg.PIDFile())
		fmt.Println(msg)
		os.Exit(errCode)
	},
}

var regServiceCmd = &cobra.Command{
	Use:   "reg_service",
	Short: "register clup-agent as a system service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := registerSystemdUnit(cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

// runAgent implements C4→C10: register with the controller, then serve
// the RPC surface and metrics endpoint until a shutdown signal arrives.
func runAgent(cfg *config.Store) {
	controller.RegistrationLoop(cfg, nil)

	coord := shutdown.New(cfg.PIDFile())
	var wg sync.WaitGroup
	coord.ListenSignals(&wg)

	watchStop := make(chan struct{})
	if err := cfg.Watch(watchStop); err != nil {
		logging.Errorf(err, "config watch disabled")
	} else {
		coord.RegisterExitHandle(func() { close(watchStop) })
	}

	dial := agentconn.New(cfg)
	mgrs := rpcserver.Managers{
		LTC: ltc.NewManager(),
		CHP: chp.NewManager(dial),
		CFT: cft.NewManager(dial),
	}

	rpcAddr, err := rpcserver.Addr(cfg)
	if err != nil {
		logging.Critical(err.Error())
		os.Exit(1)
	}
	srv := rpcserver.Build(cfg, dial, mgrs)
	coord.RegisterExitHandle(func() { srv.Close() })
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(rpcAddr); err != nil {
			logging.Errorf(err, "rpc server stopped")
		}
	}()

	metricsAddr := "127.0.0.1:" + cfg.Get("metrics_port", "9187")
	metricsSrv, err := metrics.NewServer(metricsAddr)
	if err != nil {
		logging.Errorf(err, "metrics server disabled")
	} else {
		coord.RegisterExitHandle(func() { metricsSrv.Close() })
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsSrv.Serve(); err != nil {
				logging.Errorf(err, "metrics server stopped")
			}
		}()
	}

	<-coord.Context().Done()
	if coord.Shutdown(&wg) {
		logging.Info("========== clup-agent stopped ==========")
		os.Exit(0)
	}
	logging.Info("========== clup-agent force stopped ==========")
	os.Exit(1)
}

func registerSystemdUnit(cfg *config.Store) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	unit := fmt.Sprintf(`[Unit]
Description=clup-agent
After=network.target

[Service]
Type=forking
PIDFile=%s
ExecStart=%s start
ExecStop=%s stop
Restart=on-failure

[Install]
WantedBy=multi-user.target
`, cfg.PIDFile(), exe, exe)

	path := "/etc/systemd/system/clup-agent.service"
	if err := os.WriteFile(path, []byte(unit), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("wrote %s; run `systemctl daemon-reload` to pick it up\n", path)
	return nil
}
