// Package metrics defines the agent's prometheus collectors and serves
// them on a loopback-only HTTP listener, separate from the RPC port.
//
// Grounded on cuemby-warren/pkg/metrics/metrics.go's package-level
// collector-plus-init-registration shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RPCCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clup_agent_rpc_calls_total",
			Help: "Total RPC calls handled, by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	RPCCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clup_agent_rpc_call_duration_seconds",
			Help:    "RPC handler latency by method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	LTCTasksRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clup_agent_ltc_tasks_running",
			Help: "Long-term command tasks currently running.",
		},
	)

	CHPTransferredBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clup_agent_chp_transferred_bytes_total",
			Help: "Bytes streamed through cross-host pipes.",
		},
	)

	CFTTransferredBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clup_agent_cft_transferred_bytes_total",
			Help: "Bytes copied by cross-host file transfers.",
		},
	)

	CFTTransferredFilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clup_agent_cft_transferred_files_total",
			Help: "Files copied by cross-host file transfers.",
		},
	)

	ControllerRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clup_agent_controller_registered",
			Help: "1 if this node's last controller registration attempt succeeded.",
		},
	)
)

func init() {
	prometheus.MustRegister(RPCCallsTotal)
	prometheus.MustRegister(RPCCallDuration)
	prometheus.MustRegister(LTCTasksRunning)
	prometheus.MustRegister(CHPTransferredBytesTotal)
	prometheus.MustRegister(CFTTransferredBytesTotal)
	prometheus.MustRegister(CFTTransferredFilesTotal)
	prometheus.MustRegister(ControllerRegistered)
}
