package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "control4_bridge"

var (
	Polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "polls_total",
		Help:      "Director polls by coordinator and result",
	}, []string{"coordinator", "result"})

	LastPollSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_poll_success_timestamp_seconds",
		Help:      "Last successful poll per coordinator (epoch seconds)",
	}, []string{"coordinator"})

	PollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Director poll latency per coordinator",
		Buckets:   prometheus.DefBuckets,
	}, []string{"coordinator"})

	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Account/director token refreshes by result",
	}, []string{"result"})

	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Entity commands by command name, source and result",
	}, []string{"command", "source", "result"})

	Entities = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "entities",
		Help:      "Entities set up per platform",
	}, []string{"platform"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by method and status code",
	}, []string{"method", "code"})

	HandlerPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_handler_panics_total",
		Help:      "API handler panics caught by the recovery middleware",
	})
)

// Collectors returns the bridge collectors
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		Polls,
		LastPollSuccess,
		PollDuration,
		TokenRefreshes,
		Commands,
		Entities,
		HTTPRequests,
		HandlerPanics,
	}
}

// NewRegistry returns a registry holding the bridge collectors plus the
// usual process and Go runtime collectors
func NewRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	all := append(Collectors(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, c := range all {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
