package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solecare"

var (
	once sync.Once

	serviceRequestsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_requests_created_total",
			Help:      "Count of service requests committed.",
		},
	)

	paymentsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_applied_total",
			Help:      "Count of payment applications by whether they released a line item.",
		},
		[]string{"picked_up"},
	)

	appointmentsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_cancelled_total",
			Help:      "Count of appointments cancelled by reason.",
		},
		[]string{"reason"},
	)

	relayEventsBroadcast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_broadcast_total",
			Help:      "Count of change events pushed to realtime clients.",
		},
		[]string{"event"},
	)

	relayStreamRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_stream_restarts_total",
			Help:      "Count of change stream restarts by collection.",
		},
		[]string{"collection"},
	)

	realtimeClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_clients",
			Help:      "Number of connected realtime clients.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			serviceRequestsCreated,
			paymentsApplied,
			appointmentsCancelled,
			relayEventsBroadcast,
			relayStreamRestarts,
			realtimeClients,
			httpRequests,
			httpDuration,
		)
	})
}

func IncServiceRequestCreated() {
	serviceRequestsCreated.Inc()
}

func IncPaymentApplied(pickedUp bool) {
	paymentsApplied.WithLabelValues(strconv.FormatBool(pickedUp)).Inc()
}

func AddAppointmentsCancelled(reason string, n int) {
	appointmentsCancelled.WithLabelValues(reason).Add(float64(n))
}

func IncRelayEvent(event string) {
	relayEventsBroadcast.WithLabelValues(event).Inc()
}

func IncRelayRestart(collection string) {
	relayStreamRestarts.WithLabelValues(collection).Inc()
}

func SetRealtimeClients(n int) {
	realtimeClients.Set(float64(n))
}

func ObserveHTTPRequest(method, route string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(seconds)
}
