package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// loadTimestamp records the Unix time of the last successful load.
	loadTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "preview_config_load_timestamp",
		Help: "Unix timestamp of the last successful configuration load",
	})

	// validationErrorsTotal counts failed validations by section
	// (server, fetch, rate_limit, ...).
	validationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preview_config_validation_errors_total",
		Help: "Total number of configuration validation errors by section",
	}, []string{"section"})
)

func recordLoad() {
	loadTimestamp.SetToCurrentTime()
}

func recordValidationError(section string) {
	validationErrorsTotal.WithLabelValues(section).Inc()
}
