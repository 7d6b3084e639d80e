package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests            *prometheus.CounterVec
	CounterWorkoutsStarted     prometheus.Counter
	CounterWorkoutsFinished    *prometheus.CounterVec
	CounterWorkoutsCancelled   prometheus.Counter
	CounterSnapshotSaveFailure prometheus.Counter
	CounterPersonalRecords     prometheus.Counter
	CounterAchievements        prometheus.Counter
	CounterResyncs             prometheus.Counter

	// gauges
	GaugeActiveWorkouts prometheus.Gauge

	// histograms
	HistRequestDuration  prometheus.Histogram
	HistSessionVolume    prometheus.Histogram
	HistSessionDurationM prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("ironlog", "", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("ironlog", "", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterWorkoutsStarted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_started_total",
		Help:      "The total number of started workouts",
	})
	counterWorkoutsFinished := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_finished_total",
		Help:      "The total number of finished workouts",
	}, []string{"partial"})
	counterWorkoutsCancelled := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_cancelled_total",
		Help:      "The total number of cancelled workouts",
	})
	counterSnapshotSaveFailure := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "snapshot_save_failures_total",
		Help:      "Background active workout saves that failed and were dropped",
	})
	counterPersonalRecords := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "personal_records_total",
		Help:      "Personal records set on finish",
	})
	counterAchievements := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "achievements_unlocked_total",
		Help:      "Achievements unlocked on finish",
	})
	counterResyncs := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "resyncs_total",
		Help:      "Full record and achievement recomputations",
	})

	gaugeActiveWorkouts := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_workouts",
		Help:      "Workouts currently in progress",
	})

	histReqDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			Name:      "request_duration_seconds",
			Help:      "Total duration of requests in seconds",
		},
	)
	histSessionVolume := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0, 500, 1000, 2500, 5000, 10000, 20000, 40000},
			Name:      "session_volume_kg",
			Help:      "Total volume of finished sessions in kg",
		},
	)
	histSessionDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{10, 20, 30, 45, 60, 90, 120, 180},
			Name:      "session_duration_minutes",
			Help:      "Duration of finished sessions in minutes",
		},
	)

	return &Manager{
		CounterRequests:            counterRequests,
		CounterWorkoutsStarted:     counterWorkoutsStarted,
		CounterWorkoutsFinished:    counterWorkoutsFinished,
		CounterWorkoutsCancelled:   counterWorkoutsCancelled,
		CounterSnapshotSaveFailure: counterSnapshotSaveFailure,
		CounterPersonalRecords:     counterPersonalRecords,
		CounterAchievements:        counterAchievements,
		CounterResyncs:             counterResyncs,
		GaugeActiveWorkouts:        gaugeActiveWorkouts,
		HistRequestDuration:        histReqDuration,
		HistSessionVolume:          histSessionVolume,
		HistSessionDurationM:       histSessionDuration,
	}
}
