package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MichaelAJay/go-cache"
	"github.com/MichaelAJay/go-config"
	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
	"github.com/MichaelAJay/go-serializer"

	"github.com/MichaelAJay/go-login-security/audit"
	"github.com/MichaelAJay/go-login-security/errors"
)

// DefaultActor is recorded as CreatedBy/LastModifiedBy when no actor is configured.
const DefaultActor = "system:login-security"

// cacheKeyPrefix namespaces summary cache entries.
const cacheKeyPrefix = "login-risk:"

// cachedSummary pairs a summary with the input it was computed from.
type cachedSummary struct {
	Signature string                `json:"signature"`
	Summary   *UserLoginRiskSummary `json:"summary"`
}

// Analyzer scores login attempts and maintains each user's risk summary.
// It is safe for concurrent use.
type Analyzer struct {
	history    HistoryReader
	summaries  RiskSummaryRepository
	logger     logger.Logger
	cache      cache.Cache
	metrics    metrics.Registry
	serializer serializer.Serializer
	engine     *Engine
	opts       *Options
	clock      Clock
	actor      string
	counters   analyzerCounters
}

// AnalyzerOption customizes an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClock replaces the wall clock.
func WithClock(clock Clock) AnalyzerOption {
	return func(a *Analyzer) { a.clock = clock }
}

// WithActor sets the identity written to the summary's audit fields.
func WithActor(actor string) AnalyzerOption {
	return func(a *Analyzer) { a.actor = actor }
}

// WithOptions uses opts instead of reading settings from config.
func WithOptions(opts *Options) AnalyzerOption {
	return func(a *Analyzer) { a.opts = opts }
}

// WithRules replaces the built-in rule set.
func WithRules(rules ...Rule) AnalyzerOption {
	return func(a *Analyzer) { a.engine = NewEngine(nil, rules...) }
}

// NewAnalyzer creates an Analyzer. Settings are read from config under
// security_analysis.* unless WithOptions is given; invalid settings are
// returned as a configuration error. cache may be nil.
func NewAnalyzer(
	history HistoryReader,
	summaries RiskSummaryRepository,
	logger logger.Logger,
	cache cache.Cache,
	config config.Config,
	metrics metrics.Registry,
	options ...AnalyzerOption,
) (*Analyzer, error) {
	a := &Analyzer{
		history:   history,
		summaries: summaries,
		logger:    logger,
		cache:     cache,
		metrics:   metrics,
		clock:     SystemClock{},
		actor:     DefaultActor,
	}
	for _, option := range options {
		option(a)
	}

	if a.opts == nil {
		opts, err := LoadOptions(config)
		if err != nil {
			return nil, err
		}
		a.opts = opts
	} else if err := a.opts.Validate(); err != nil {
		return nil, err
	}

	if a.engine == nil {
		a.engine = NewEngine(a.opts)
	} else {
		a.engine = NewEngine(a.opts, a.engine.rules...)
	}

	jsonSerializer, err := serializer.DefaultRegistry.New(serializer.JSON)
	if err != nil {
		jsonSerializer = serializer.NewJSONSerializer()
	}
	a.serializer = jsonSerializer

	return a, nil
}

// Options returns the analyzer's validated settings.
func (a *Analyzer) Options() *Options {
	return a.opts
}

// Stats returns a snapshot of the analyzer's counters.
func (a *Analyzer) Stats() Stats {
	return a.counters.snapshot()
}

// HandleLoginAttemptRecorded analyzes the attempt carried by event. It lets
// the Analyzer be registered directly as an audit.Handler.
func (a *Analyzer) HandleLoginAttemptRecorded(ctx context.Context, event audit.LoginAttemptRecorded) error {
	attempt := event.Attempt
	_, err := a.AnalyzeUserSecurity(ctx, &attempt)
	return err
}

// AnalyzeUserSecurity scores attempt against the account's and source IP's
// recent history and stores the resulting summary. Only invalid input is
// returned as an error: history and storage failures degrade to a warning.
func (a *Analyzer) AnalyzeUserSecurity(ctx context.Context, attempt *audit.LoginAttempt) (*UserLoginRiskSummary, error) {
	startTime := time.Now()
	defer func() {
		timer := a.metrics.Timer(metrics.Options{
			Name: "login_security.analyze",
		})
		timer.RecordSince(startTime)
	}()

	if err := a.validateAttempt(attempt); err != nil {
		counter := a.metrics.Counter(metrics.Options{
			Name: "login_security.analyze.invalid",
		})
		counter.Inc()
		return nil, err
	}

	current := attempt.Clone()
	if current.LoginTimeUTC.IsZero() {
		current.LoginTimeUTC = a.clock.Now().UTC()
	} else {
		current.LoginTimeUTC = current.LoginTimeUTC.UTC()
	}

	history := a.loadHistory(ctx, current)
	signature := inputSignature(current, history)

	if summary := a.getCachedSummary(ctx, current.UserID, signature); summary != nil {
		a.counters.cacheHits.Add(1)
		counter := a.metrics.Counter(metrics.Options{
			Name: "login_security.cache_hit",
		})
		counter.Inc()
		return summary, nil
	}

	analysis := a.engine.Evaluate(current, history)
	a.counters.analyses.Add(1)

	counter := a.metrics.Counter(metrics.Options{
		Name: "login_security.risk_level",
		Tags: metrics.Tags{"level": analysis.RiskLevel.String()},
	})
	counter.Inc()

	summary, saved := a.upsertSummary(ctx, current, analysis)
	if saved {
		a.cacheSummary(ctx, signature, summary)
	}

	a.logger.Info("Login risk analyzed",
		logger.Field{Key: "user_id", Value: current.UserID},
		logger.Field{Key: "risk_score", Value: analysis.RiskScore},
		logger.Field{Key: "risk_level", Value: analysis.RiskLevel.String()},
		logger.Field{Key: "triggered_rules", Value: analysis.TriggeredRuleNames()})

	return summary, nil
}

// Evaluate runs the rules without touching the summary store or cache.
func (a *Analyzer) Evaluate(ctx context.Context, attempt *audit.LoginAttempt) (*AnalysisResult, error) {
	if err := a.validateAttempt(attempt); err != nil {
		return nil, err
	}
	current := attempt.Clone()
	if current.LoginTimeUTC.IsZero() {
		current.LoginTimeUTC = a.clock.Now().UTC()
	}
	return a.engine.Evaluate(current, a.loadHistory(ctx, current)), nil
}

func (a *Analyzer) validateAttempt(attempt *audit.LoginAttempt) error {
	if attempt == nil {
		return errors.NewAppErrorWithCause(errors.CodeInvalidAttempt, "Login attempt is required", errors.ErrInvalidAttempt)
	}
	if strings.TrimSpace(attempt.UserID) == "" {
		return errors.NewRequiredFieldError("user_id")
	}
	return nil
}

// loadHistory fetches the account and source IP windows. A failing query
// leaves its window empty. The attempt under analysis is always part of
// both windows.
//
// The account's recent attempts and its successful baseline are loaded
// separately so a flood of failures cannot push the baseline past
// MaxHistoryRecords.
func (a *Analyzer) loadHistory(ctx context.Context, attempt *audit.LoginAttempt) History {
	var history History

	recentSince := attempt.LoginTimeUTC.Add(-a.opts.BruteForceWindow())
	recent, err := a.queryWithRetry(ctx, func(ctx context.Context) ([]*audit.LoginAttempt, error) {
		return a.history.ListByUserSince(ctx, attempt.UserID, recentSince, a.opts.MaxHistoryRecords)
	})
	if err != nil {
		a.recordDegradedHistory("user", attempt, err)
	}

	baselineSince := attempt.LoginTimeUTC.Add(-a.opts.HistoryWindow())
	baseline, err := a.queryWithRetry(ctx, func(ctx context.Context) ([]*audit.LoginAttempt, error) {
		return a.history.ListSuccessfulByUserSince(ctx, attempt.UserID, baselineSince, a.opts.MaxHistoryRecords)
	})
	if err != nil {
		a.recordDegradedHistory("baseline", attempt, err)
	}

	userAttempts := recent
	for _, b := range baseline {
		userAttempts = includeAttempt(userAttempts, b)
	}
	history.UserAttempts = includeAttempt(userAttempts, attempt)

	if attempt.IPAddress != "" {
		ipSince := attempt.LoginTimeUTC.Add(-a.opts.BruteForceWindow())
		ipAttempts, err := a.queryWithRetry(ctx, func(ctx context.Context) ([]*audit.LoginAttempt, error) {
			return a.history.ListByIPSince(ctx, attempt.IPAddress, ipSince, a.opts.MaxHistoryRecords)
		})
		if err != nil {
			a.recordDegradedHistory("ip", attempt, err)
		}
		history.IPAttempts = includeAttempt(ipAttempts, attempt)
	}

	return history
}

// queryWithRetry runs query with the configured timeout, retrying once after
// the backoff.
func (a *Analyzer) queryWithRetry(
	ctx context.Context,
	query func(context.Context) ([]*audit.LoginAttempt, error),
) ([]*audit.LoginAttempt, error) {
	var lastErr error
	for try := 0; try < 2; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.NewHistoryUnavailableError(ctx.Err())
			case <-time.After(a.opts.HistoryRetryBackoff):
			}
		}

		queryCtx, cancel := context.WithTimeout(ctx, a.opts.HistoryQueryTimeout)
		attempts, err := query(queryCtx)
		cancel()
		if err == nil {
			return attempts, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.NewHistoryUnavailableError(lastErr)
}

func (a *Analyzer) recordDegradedHistory(window string, attempt *audit.LoginAttempt, err error) {
	a.counters.degradedHistoryLoads.Add(1)
	counter := a.metrics.Counter(metrics.Options{
		Name: "login_security.history_degraded",
		Tags: metrics.Tags{"window": window},
	})
	counter.Inc()
	a.logger.Warn("Login history unavailable, analyzing without it",
		logger.Field{Key: "window", Value: window},
		logger.Field{Key: "user_id", Value: attempt.UserID},
		logger.Field{Key: "error", Value: err.Error()})
}

// upsertSummary applies analysis to the user's summary and stores it.
// The bool reports whether the write succeeded.
func (a *Analyzer) upsertSummary(ctx context.Context, attempt *audit.LoginAttempt, analysis *AnalysisResult) (*UserLoginRiskSummary, bool) {
	summary, err := a.summaries.GetByUserID(ctx, attempt.UserID)
	if err != nil {
		if !errors.IsErrorType(err, errors.ErrSummaryNotFound) {
			a.logger.Warn("Failed to read risk summary, overwriting",
				logger.Field{Key: "user_id", Value: attempt.UserID},
				logger.Field{Key: "error", Value: err.Error()})
		}
		summary = NewUserLoginRiskSummary(attempt.UserID, attempt.UserName)
	}

	if attempt.UserName != "" {
		summary.UserName = attempt.UserName
	}
	summary.Apply(analysis, a.actor, a.clock.Now())

	if err := a.summaries.Upsert(ctx, summary); err != nil {
		a.counters.failedUpserts.Add(1)
		counter := a.metrics.Counter(metrics.Options{
			Name: "login_security.upsert_failed",
		})
		counter.Inc()
		a.logger.Warn("Failed to store risk summary",
			logger.Field{Key: "user_id", Value: attempt.UserID},
			logger.Field{Key: "error", Value: err.Error()})
		return summary, false
	}
	return summary, true
}

// cacheSummary stores summary under the user's key, tagged with the input signature.
func (a *Analyzer) cacheSummary(ctx context.Context, signature string, summary *UserLoginRiskSummary) {
	if a.cache == nil || a.opts.CacheExpiration() <= 0 {
		return
	}

	payload, err := a.serializer.Serialize(&cachedSummary{Signature: signature, Summary: summary})
	if err != nil {
		a.logger.Warn("Failed to serialize risk summary",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "user_id", Value: summary.UserID})
		return
	}

	if err := a.cache.Set(ctx, cacheKeyPrefix+summary.UserID, payload, a.opts.CacheExpiration()); err != nil {
		a.logger.Warn("Failed to cache risk summary",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "user_id", Value: summary.UserID})
	}
}

// getCachedSummary returns the cached summary when it was computed from the
// same input, nil otherwise.
func (a *Analyzer) getCachedSummary(ctx context.Context, userID, signature string) *UserLoginRiskSummary {
	if a.cache == nil || a.opts.CacheExpiration() <= 0 {
		return nil
	}

	cached, found, err := a.cache.Get(ctx, cacheKeyPrefix+userID)
	if err != nil || !found {
		return nil
	}

	var entry cachedSummary
	switch v := cached.(type) {
	case []byte:
		if err := a.serializer.Deserialize(v, &entry); err != nil {
			return nil
		}
	case string:
		if err := a.serializer.Deserialize([]byte(v), &entry); err != nil {
			return nil
		}
	default:
		return nil
	}

	if entry.Summary == nil || entry.Signature != signature {
		return nil
	}
	return entry.Summary
}

// includeAttempt returns attempts with attempt appended when absent.
func includeAttempt(attempts []*audit.LoginAttempt, attempt *audit.LoginAttempt) []*audit.LoginAttempt {
	for _, a := range attempts {
		if a.SameAttempt(attempt) {
			return attempts
		}
	}
	return append(attempts, attempt)
}

// inputSignature identifies the evidence an analysis was computed from.
func inputSignature(attempt *audit.LoginAttempt, history History) string {
	seen := make(map[string]struct{})
	var ids []string
	for _, list := range [][]*audit.LoginAttempt{history.UserAttempts, history.IPAttempts} {
		for _, a := range list {
			id := attemptIdentity(a)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%t\n",
		attemptIdentity(attempt), attempt.UserName, attempt.Region, attempt.DeviceHash, attempt.Success)
	for _, id := range ids {
		fmt.Fprintln(h, id)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func attemptIdentity(a *audit.LoginAttempt) string {
	if a.ID != 0 {
		return fmt.Sprintf("id:%d", a.ID)
	}
	return fmt.Sprintf("t:%d|%s|%s|%t", a.LoginTimeUTC.UnixNano(), a.UserID, a.IPAddress, a.Success)
}
