// Package metrics exposes Prometheus collectors for the store, schema
// registry, and task registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store metrics
	ObjectsAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iris_objects_appended_total",
			Help: "Total number of object records appended to the segment log",
		},
	)

	EdgesAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iris_edges_appended_total",
			Help: "Total number of edge records appended to the segment log",
		},
	)

	StoreOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "iris_store_open",
			Help: "Whether the segment store is open (1 = open, 0 = closed)",
		},
	)

	TxnCommits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iris_txn_commits_total",
			Help: "Total number of committed transactions",
		},
	)

	TxnRollbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iris_txn_rollbacks_total",
			Help: "Total number of rolled-back transactions",
		},
	)

	// Schema metrics
	DefinitionsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iris_definitions_registered_total",
			Help: "Total number of type definitions registered",
		},
	)

	// Task metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iris_tasks_total",
			Help: "Number of tasks by state",
		},
		[]string{"state"},
	)

	TasksSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iris_tasks_spawned_total",
			Help: "Total number of tasks spawned",
		},
	)
)

// Register registers all iris collectors with the given registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(
		ObjectsAppended,
		EdgesAppended,
		StoreOpen,
		TxnCommits,
		TxnRollbacks,
		DefinitionsRegistered,
		TasksTotal,
		TasksSpawned,
	)
}

// Serve exposes /metrics on the given address. Blocks until the server
// fails; run it in a goroutine.
func Serve(addr string) error {
	Register(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
