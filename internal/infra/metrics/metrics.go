// Package metrics defines the Prometheus instruments of the player.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trackbox_player_sessions_started_total",
		Help: "Player processes started",
	})
	SessionsTerminated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trackbox_player_sessions_terminated_total",
		Help: "Player processes stopped by the controller",
	})
	SessionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trackbox_player_sessions_completed_total",
		Help: "Player processes that exited on their own",
	})
	SpawnFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trackbox_player_spawn_failures_total",
		Help: "Player launches that failed",
	})
	DiscoveryMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trackbox_player_discovery_misses_total",
		Help: "Player launches whose process id could not be found",
	})
	TracksPlayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackbox_tracks_played_total",
			Help: "Tracks started, by reason",
		},
		[]string{"reason"},
	)
	CatalogTracks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trackbox_catalog_tracks",
		Help: "Tracks in the loaded catalog",
	})
	Volume = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trackbox_volume",
		Help: "Current volume (0-100)",
	})
)

// Register registers all instruments with reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		SessionsStarted,
		SessionsTerminated,
		SessionsCompleted,
		SpawnFailures,
		DiscoveryMisses,
		TracksPlayed,
		CatalogTracks,
		Volume,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the HTTP handler exposing the metrics of gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
