package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// Scoring

	RatingsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_ratings_issued_total",
			Help: "Number of ratings issued per tier",
		},
		[]string{"model_version", "rating"},
	)

	ScoringCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_cache_lookups_total",
			Help: "Scoring result cache lookups by outcome (hit, miss, error)",
		},
		[]string{"outcome"},
	)

	DecisionLogWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_log_writes_total",
			Help: "Decision log writes by outcome (ok, error)",
		},
		[]string{"outcome"},
	)

	ModelBundleLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_bundle_loads_total",
			Help: "Model bundle load attempts by outcome",
		},
		[]string{"version", "outcome"},
	)
)

// scoreBucketCount is the number of equal-width credit score buckets.
const scoreBucketCount = 12

// ScoreBuckets splits [minScore, maxScore] into equal-width histogram buckets.
func ScoreBuckets(minScore, maxScore int) []float64 {
	if maxScore <= minScore {
		return []float64{float64(minScore)}
	}
	width := float64(maxScore-minScore) / scoreBucketCount
	return prometheus.LinearBuckets(float64(minScore), width, scoreBucketCount+1)
}

// CreditScoreHistogram registers the credit_score histogram on the default registry
// with buckets spanning the active calibration scale.
func CreditScoreHistogram(minScore, maxScore int) *prometheus.HistogramVec {
	return RegisterCreditScoreHistogram(prometheus.DefaultRegisterer, minScore, maxScore)
}

// RegisterCreditScoreHistogram registers the credit_score histogram on reg. When one is
// already registered, that collector is returned and keeps its buckets.
func RegisterCreditScoreHistogram(reg prometheus.Registerer, minScore, maxScore int) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credit_score",
			Help:    "Distribution of issued credit scores",
			Buckets: ScoreBuckets(minScore, maxScore),
		},
		[]string{"model_version"},
	)
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}
