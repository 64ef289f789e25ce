package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stevedore/internal/events"
)

var (
	EnginesDetected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stevedore_engines_detected",
		Help: "Number of container engines found by the last detection cycle",
	})

	EngineStatusUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stevedore_engine_status_updates_total",
		Help: "Pushed health updates applied per engine and status",
	}, []string{"runtime", "status"})

	OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stevedore_operations_total",
		Help: "Container lifecycle operations per op and result",
	}, []string{"op", "result"})

	BatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stevedore_batches_total",
		Help: "Batch executions per op",
	}, []string{"op"})

	RefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stevedore_refreshes_total",
		Help: "Container list refreshes per result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		EnginesDetected,
		EngineStatusUpdatesTotal,
		OperationsTotal,
		BatchesTotal,
		RefreshesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RegisterEventHandler wires metric updates to the event emitter.
func RegisterEventHandler(emitter *events.Emitter) {
	emitter.OnEvent(func(ev events.Event) {
		switch ev.Type {
		case events.EngineDetected:
			if n, err := strconv.Atoi(ev.Fields["count"]); err == nil {
				EnginesDetected.Set(float64(n))
			}
		case events.EngineStatusChanged:
			EngineStatusUpdatesTotal.WithLabelValues(ev.Runtime, ev.Fields["status"]).Inc()
		case events.OperationSucceeded:
			OperationsTotal.WithLabelValues(ev.Fields["op"], "success").Inc()
		case events.OperationFailed:
			OperationsTotal.WithLabelValues(ev.Fields["op"], "failure").Inc()
		case events.OperationSkipped:
			OperationsTotal.WithLabelValues(ev.Fields["op"], "skipped").Inc()
		case events.BatchCompleted:
			BatchesTotal.WithLabelValues(ev.Fields["op"]).Inc()
		case events.SnapshotRefreshed:
			RefreshesTotal.WithLabelValues("success").Inc()
		case events.RefreshFailed:
			RefreshesTotal.WithLabelValues("failure").Inc()
		}
	})
}
