// internal/workers/risk/score-credit-risk/handler.go
package scorecreditrisk

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"

	"credit-risk/internal/common/camunda"
	"credit-risk/internal/common/database"
	"credit-risk/internal/common/errors"
	"credit-risk/internal/common/logger"
	"credit-risk/internal/common/metrics"
	"credit-risk/internal/common/observability"
	"credit-risk/internal/common/validation"
	"credit-risk/internal/decisionlog"
	"credit-risk/internal/scoring"
)

const TaskType = "score-credit-risk"

const cacheKeyPrefix = "credit-risk:score:"

// Scorer is satisfied by *scoring.Pipeline.
type Scorer interface {
	Score(profile scoring.ApplicantProfile) (scoring.ScoringResult, error)
	CacheScope() string
	ScoreBounds() (int, int)
}

type Dependencies struct {
	Scorer        Scorer
	Cache         *database.RedisClient // nil disables caching
	Decisions     decisionlog.Store     // nil disables the decision log
	Observability *observability.Observability
}

type Handler struct {
	config       *Config
	deps         Dependencies
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	scores       *prometheus.HistogramVec
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) (*Handler, error) {
	if deps.Scorer == nil {
		return nil, fmt.Errorf("%s: scorer is required", TaskType)
	}
	if config.DecisionLogEnabled && deps.Decisions == nil {
		return nil, fmt.Errorf("%s: decision log enabled without a store", TaskType)
	}
	if deps.Observability == nil {
		deps.Observability = &observability.Observability{}
	}

	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		deps:         deps,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
		scores:       metrics.CreditScoreHistogram(deps.Scorer.ScoreBounds()),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, startTime, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, startTime, err)
		return
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.deps.Observability.RecordJobProcessed(ctx, "completed")
	h.deps.Observability.RecordJobDuration(ctx, time.Since(startTime), "completed")
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewParseError(err)
	}

	result, err := validation.ValidateInput(variables, h.config.InputSchema)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewInputSchemaInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		return nil, errors.NewParseError(err)
	}
	return &input, nil
}

// Execute scores one applicant. Cache failures degrade to a fresh score; a decision log
// failure fails the call because the decision must be auditable.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewScoringTimeoutError(err)
	}

	result, cached, err := h.score(ctx, input.Applicant)
	if err != nil {
		return nil, err
	}
	output := newOutput(result, cached)

	if h.config.DecisionLogEnabled {
		d, err := h.deps.Decisions.Record(ctx, decisionlog.NewDecision(input.ApplicationID, input.Applicant, result, cached))
		if err != nil {
			metrics.DecisionLogWrites.WithLabelValues("error").Inc()
			return nil, errors.NewDecisionLogFailedError(err)
		}
		metrics.DecisionLogWrites.WithLabelValues("ok").Inc()
		output.DecisionID = d.ID.String()
	}

	h.scores.WithLabelValues(result.ModelVersion).Observe(float64(result.CreditScore))
	metrics.RatingsIssued.WithLabelValues(result.ModelVersion, string(result.Rating)).Inc()
	h.deps.Observability.RecordProbability(ctx, result.Probability, result.ModelVersion)

	h.logger.Info("applicant scored", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"probability":   result.Probability,
		"creditScore":   result.CreditScore,
		"rating":        string(result.Rating),
		"modelVersion":  result.ModelVersion,
		"cached":        cached,
	})
	return output, nil
}

func (h *Handler) score(ctx context.Context, profile scoring.ApplicantProfile) (scoring.ScoringResult, bool, error) {
	if !h.cacheEnabled() {
		result, err := h.deps.Scorer.Score(profile)
		return result, false, err
	}

	key := h.cacheKey(profile)
	var cached scoring.ScoringResult
	err := h.deps.Cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		metrics.ScoringCacheLookups.WithLabelValues("hit").Inc()
		return cached, true, nil
	case stderrors.Is(err, database.ErrCacheMiss):
		metrics.ScoringCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.ScoringCacheLookups.WithLabelValues("error").Inc()
		h.logCacheFailure("read", err)
	}

	result, err := h.deps.Scorer.Score(profile)
	if err != nil {
		return scoring.ScoringResult{}, false, err
	}

	if err := h.deps.Cache.SetJSON(ctx, key, result, h.config.CacheTTL); err != nil {
		h.logCacheFailure("write", err)
	}
	return result, false, nil
}

// logCacheFailure records a cache fault; scoring continues without the cache.
func (h *Handler) logCacheFailure(op string, err error) {
	stdErr := errors.NewScoringCacheFailedError(err)
	h.logger.Warn("scoring cache "+op+" failed", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
}

func (h *Handler) cacheEnabled() bool {
	return h.deps.Cache != nil && h.config.CacheTTL > 0
}

// cacheKey scopes entries to the model version and calibration; a new bundle or a
// calibration override never serves results computed under the old constants.
func (h *Handler) cacheKey(profile scoring.ApplicantProfile) string {
	return cacheKeyPrefix + h.deps.Scorer.CacheScope() + ":" + profile.Fingerprint()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, startTime time.Time, err error) {
	stdErr := errors.FromError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.deps.Observability.RecordJobProcessed(ctx, "failed")
	h.deps.Observability.RecordJobDuration(ctx, time.Since(startTime), "failed")

	// The job deadline may already be spent; the broker still needs the outcome.
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("create complete job command: %w", err)
	}
	return camunda.Retry(ctx, &camunda.RetryConfig{
		MaxRetries: 2,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
	}, "complete job", func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
}
