package security_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MichaelAJay/go-login-security/audit"
	"github.com/MichaelAJay/go-login-security/errors"
	"github.com/MichaelAJay/go-login-security/repository/memory"
	"github.com/MichaelAJay/go-login-security/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var analysisTime = time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

type analyzerFixture struct {
	analyzer  *security.Analyzer
	attempts  *memory.LoginAttemptRepository
	summaries *memory.RiskSummaryRepository
	cache     *mockCache
	logger    *mockLogger
	metrics   *mockMetrics
}

func testOptions() *security.Options {
	opts := security.DefaultOptions()
	opts.HistoryRetryBackoff = time.Millisecond
	return opts
}

func newAnalyzerFixture(t *testing.T, withCache bool, options ...security.AnalyzerOption) *analyzerFixture {
	t.Helper()
	f := &analyzerFixture{
		attempts:  memory.NewLoginAttemptRepository(),
		summaries: memory.NewRiskSummaryRepository(),
		cache:     newMockCache(),
		logger:    &mockLogger{},
		metrics:   newMockMetrics(),
	}

	base := []security.AnalyzerOption{
		security.WithOptions(testOptions()),
		security.WithClock(fixedClock{now: analysisTime}),
		security.WithActor("test-actor"),
	}

	var err error
	if withCache {
		f.analyzer, err = security.NewAnalyzer(f.attempts, f.summaries, f.logger, f.cache, nil, f.metrics, append(base, options...)...)
	} else {
		f.analyzer, err = security.NewAnalyzer(f.attempts, f.summaries, f.logger, nil, nil, f.metrics, append(base, options...)...)
	}
	require.NoError(t, err)
	return f
}

func (f *analyzerFixture) record(t *testing.T, userID, ip, region string, success bool, at time.Time) *audit.LoginAttempt {
	t.Helper()
	attempt := &audit.LoginAttempt{
		LoginTimeUTC: at,
		UserID:       userID,
		UserName:     userID,
		IPAddress:    ip,
		Region:       region,
		Provider:     audit.ProviderLocal,
		Success:      success,
	}
	require.NoError(t, f.attempts.Create(context.Background(), attempt))
	return attempt
}

func TestAnalyzer_AccountBruteForceRaisesMedium(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-4*time.Minute))
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-2*time.Minute))
	current := f.record(t, "alice", "10.0.0.5", "", false, analysisTime)

	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, 50, summary.RiskScore)
	assert.Equal(t, security.RiskLevelMedium, summary.RiskLevel)
	assert.Equal(t, "3 failed login attempts for this account in the last 10 minutes", summary.Description)
	assert.Contains(t, summary.Advice, security.AdviceEnableTwoFactor)
	assert.Contains(t, summary.Advice, security.AdviceChangePassword)
	assert.Equal(t, "test-actor", summary.CreatedBy)
	assert.Equal(t, analysisTime, summary.LastModifiedAt)

	stored, err := f.summaries.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, summary, stored)
	assert.Equal(t, int64(1), f.analyzer.Stats().Analyses)
}

func TestAnalyzer_NewIPAgainstBaselineIsLow(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	for day := 1; day < 30; day++ {
		f.record(t, "alice", "198.51.100.1", "", true, analysisTime.Add(-time.Duration(day)*24*time.Hour))
	}
	current := f.record(t, "alice", "203.0.113.77", "", true, analysisTime)

	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, 25, summary.RiskScore)
	assert.Equal(t, security.RiskLevelLow, summary.RiskLevel)
	assert.Equal(t, "Login from new IP address 203.0.113.77", summary.Description)
}

func TestAnalyzer_NightSignInIsUnusual(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	night := time.Date(2024, 6, 3, 3, 0, 0, 0, time.UTC)
	current := f.record(t, "bob", "10.1.1.1", "", true, night)

	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, 15, summary.RiskScore)
	assert.Equal(t, security.RiskLevelLow, summary.RiskLevel)
	assert.Equal(t, security.AdviceReviewUnusualTime, summary.Advice)
}

func TestAnalyzer_BruteForceFromNewIPIsHigh(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	f.record(t, "alice", "198.51.100.1", "", true, analysisTime.Add(-72*time.Hour))
	for minute := 3; minute >= 1; minute-- {
		f.record(t, "alice", "203.0.113.77", "", false, analysisTime.Add(-time.Duration(minute)*time.Minute))
	}
	current := f.record(t, "alice", "203.0.113.77", "", true, analysisTime)

	result, err := f.analyzer.Evaluate(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		security.RuleAccountBruteForce: 50,
		security.RuleNewDeviceLocation: 25,
	}, result.ScoreBreakdown)

	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, 75, summary.RiskScore)
	assert.Equal(t, security.RiskLevelHigh, summary.RiskLevel)
	assert.Equal(t, fmt.Sprintf("%s %s %s %s",
		security.AdviceEnableTwoFactor, security.AdviceChangePassword,
		security.AdviceVerifyLogin, security.AdviceReviewDevices), summary.Advice)
}

func TestAnalyzer_CacheSkipsRepeatAnalysis(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-time.Minute))
	current := f.record(t, "alice", "10.0.0.5", "", false, analysisTime)

	first, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	second, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.summaries.Writes(), "cache hit must not write")
	assert.Equal(t, int64(1), f.analyzer.Stats().CacheHits)
	assert.Equal(t, 1, f.metrics.count("login_security.cache_hit"))

	// new evidence invalidates the cached entry
	third := f.record(t, "alice", "10.0.0.5", "", false, analysisTime)
	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), third)
	require.NoError(t, err)
	assert.Equal(t, 2, f.summaries.Writes())
	assert.Equal(t, 50, summary.RiskScore)
	assert.Equal(t, first.ID, summary.ID)
}

func TestAnalyzer_FailureFloodKeepsSuccessfulBaseline(t *testing.T) {
	f := newAnalyzerFixture(t, false)
	for day := 5; day < 15; day++ {
		f.record(t, "alice", "10.1.1.1", "", true, analysisTime.Add(-time.Duration(day)*24*time.Hour))
	}
	floodEnd := analysisTime.Add(-time.Hour)
	for i := 0; i < testOptions().MaxHistoryRecords; i++ {
		f.record(t, "alice", "203.0.113.9", "", false, floodEnd.Add(-time.Duration(i)*time.Minute))
	}
	current := f.record(t, "alice", "198.51.100.7", "", true, analysisTime)

	result, err := f.analyzer.Evaluate(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{security.RuleNewDeviceLocation: 25}, result.ScoreBreakdown)
	assert.Equal(t, []string{"Login from new IP address 198.51.100.7"}, result.RiskFactors)
}

func TestAnalyzer_IdempotentWithoutCache(t *testing.T) {
	f := newAnalyzerFixture(t, false)
	f.record(t, "alice", "198.51.100.1", "", true, analysisTime.Add(-48*time.Hour))
	current := f.record(t, "alice", "203.0.113.1", "Lisbon", true, analysisTime)

	first, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	firstResult, err := f.analyzer.Evaluate(context.Background(), current)
	require.NoError(t, err)

	second, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	secondResult, err := f.analyzer.Evaluate(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, firstResult, secondResult)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, f.summaries.Writes())

	stored, err := f.summaries.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, second, stored)
}

func TestAnalyzer_UnsavedAttemptIsIncluded(t *testing.T) {
	f := newAnalyzerFixture(t, false)
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-2*time.Minute))
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-time.Minute))

	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), &audit.LoginAttempt{
		LoginTimeUTC: analysisTime,
		UserID:       "alice",
		UserName:     "alice",
		IPAddress:    "10.0.0.5",
	})
	require.NoError(t, err)
	assert.Equal(t, 50, summary.RiskScore)
}

func TestAnalyzer_UpdatesExistingSummary(t *testing.T) {
	f := newAnalyzerFixture(t, false)
	first := f.record(t, "alice", "10.0.0.5", "", true, analysisTime)
	created, err := f.analyzer.AnalyzeUserSecurity(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, security.RiskLevelLow, created.RiskLevel)
	assert.Equal(t, "No risk factors detected.", created.Description)

	later := analysisTime.Add(time.Hour)
	laterAnalyzer, err := security.NewAnalyzer(f.attempts, f.summaries, f.logger, nil, nil, f.metrics,
		security.WithOptions(testOptions()),
		security.WithClock(fixedClock{now: later}),
		security.WithActor("second-actor"))
	require.NoError(t, err)

	night := time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC)
	attempt := f.record(t, "alice", "10.0.0.5", "", true, night)
	updated, err := laterAnalyzer.AnalyzeUserSecurity(context.Background(), attempt)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "test-actor", updated.CreatedBy)
	assert.Equal(t, "second-actor", updated.LastModifiedBy)
	assert.Equal(t, later, updated.LastModifiedAt)
	assert.Equal(t, 15, updated.RiskScore)

	list, total, err := f.summaries.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 15, list[0].RiskScore)
}

func TestAnalyzer_SummaryReadFailureKeepsStoredIdentity(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	first := f.record(t, "alice", "10.0.0.5", "", true, analysisTime)
	created, err := f.analyzer.AnalyzeUserSecurity(context.Background(), first)
	require.NoError(t, err)

	f.summaries.FailNext("GetByUserID", 1)
	second := f.record(t, "alice", "10.0.0.5", "", false, analysisTime)
	updated, err := f.analyzer.AnalyzeUserSecurity(context.Background(), second)
	require.NoError(t, err)

	stored, err := f.summaries.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, stored, updated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	// the cached copy carries the stored identity too
	again, err := f.analyzer.AnalyzeUserSecurity(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.analyzer.Stats().CacheHits)
	assert.Equal(t, created.ID, again.ID)
}

func TestAnalyzer_HistoryRetrySucceeds(t *testing.T) {
	f := newAnalyzerFixture(t, false)
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-2*time.Minute))
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-time.Minute))
	current := f.record(t, "alice", "10.0.0.5", "", false, analysisTime)

	f.attempts.FailNext("ListByUserSince", 1)
	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, 50, summary.RiskScore)
	assert.Zero(t, f.analyzer.Stats().DegradedHistoryLoads)
}

func TestAnalyzer_HistoryFailureDegrades(t *testing.T) {
	f := newAnalyzerFixture(t, false)
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-2*time.Minute))
	f.record(t, "alice", "10.0.0.5", "", false, analysisTime.Add(-time.Minute))
	current := f.record(t, "alice", "10.0.0.5", "", false, analysisTime)

	f.attempts.SetShouldFail("ListByUserSince")
	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err, "history failures never reach the caller")
	assert.Zero(t, summary.RiskScore)
	assert.Equal(t, int64(1), f.analyzer.Stats().DegradedHistoryLoads)
	assert.Equal(t, 1, f.metrics.count("login_security.history_degraded"))
	assert.Equal(t, 1, f.logger.warnCount())
}

type blockingHistory struct{}

func (blockingHistory) ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingHistory) ListSuccessfulByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingHistory) ListByIPSince(ctx context.Context, ip string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAnalyzer_HistoryTimeout(t *testing.T) {
	opts := testOptions()
	opts.HistoryQueryTimeout = 20 * time.Millisecond
	summaries := memory.NewRiskSummaryRepository()
	analyzer, err := security.NewAnalyzer(blockingHistory{}, summaries, &mockLogger{}, nil, nil, newMockMetrics(),
		security.WithOptions(opts), security.WithClock(fixedClock{now: analysisTime}))
	require.NoError(t, err)

	start := time.Now()
	summary, err := analyzer.AnalyzeUserSecurity(context.Background(), &audit.LoginAttempt{
		LoginTimeUTC: analysisTime, UserID: "alice", UserName: "alice", IPAddress: "10.0.0.5",
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, security.RiskLevelLow, summary.RiskLevel)
	assert.Equal(t, int64(3), analyzer.Stats().DegradedHistoryLoads, "user, baseline and ip windows all degrade")
}

func TestAnalyzer_UpsertFailureIsNonFatal(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	current := f.record(t, "alice", "10.0.0.5", "", true, analysisTime)
	f.summaries.SetShouldFail("Upsert")

	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "alice", summary.UserID)
	assert.Equal(t, int64(1), f.analyzer.Stats().FailedUpserts)
	assert.Equal(t, 0, f.cache.sets, "unsaved summaries are not cached")

	_, err = f.summaries.GetByUserID(context.Background(), "alice")
	assert.True(t, errors.IsErrorType(err, errors.ErrSummaryNotFound))
}

func TestAnalyzer_InvalidInput(t *testing.T) {
	f := newAnalyzerFixture(t, false)

	_, err := f.analyzer.AnalyzeUserSecurity(context.Background(), nil)
	assert.Equal(t, errors.CodeInvalidAttempt, errors.GetErrorCode(err))

	_, err = f.analyzer.AnalyzeUserSecurity(context.Background(), &audit.LoginAttempt{UserID: "  "})
	assert.True(t, errors.IsErrorType(err, errors.ErrRequiredFieldMissing))
	assert.Equal(t, 0, f.summaries.Writes())
}

func TestNewAnalyzer_RejectsInvalidOptions(t *testing.T) {
	opts := security.DefaultOptions()
	opts.IPBruteForceThreshold = -3

	_, err := security.NewAnalyzer(memory.NewLoginAttemptRepository(), memory.NewRiskSummaryRepository(),
		&mockLogger{}, nil, nil, newMockMetrics(), security.WithOptions(opts))
	assert.Equal(t, errors.CodeConfigurationError, errors.GetErrorCode(err))
}

func TestAnalyzer_CustomRules(t *testing.T) {
	always := func(attempt *audit.LoginAttempt, history security.History, opts *security.Options) security.RuleResult {
		return security.RuleResult{RuleName: "Watchlist", Score: 90, Factors: []string{"account on watchlist"}}
	}
	f := newAnalyzerFixture(t, false, security.WithRules(always))
	current := f.record(t, "mallory", "10.9.9.9", "", true, analysisTime)

	summary, err := f.analyzer.AnalyzeUserSecurity(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, security.RiskLevelCritical, summary.RiskLevel)
	assert.Equal(t, "account on watchlist", summary.Description)
}

func TestAnalyzer_AsRecorderHandler(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	recorder := audit.NewRecorder(f.attempts, nil, f.logger, f.metrics, f.analyzer)

	for i := 0; i < 3; i++ {
		_, err := recorder.Record(context.Background(), &audit.LoginAttempt{
			LoginTimeUTC: analysisTime.Add(time.Duration(i-2) * time.Minute),
			UserID:       "erin",
			UserName:     "erin",
			IPAddress:    "192.0.2.10",
			Provider:     audit.ProviderLocal,
		})
		require.NoError(t, err)
	}

	summary, err := f.summaries.GetByUserID(context.Background(), "erin")
	require.NoError(t, err)
	assert.Equal(t, 50, summary.RiskScore)
	assert.Equal(t, int64(3), f.analyzer.Stats().Analyses)
}

func TestAnalyzer_ConcurrentAnalyses(t *testing.T) {
	f := newAnalyzerFixture(t, true)
	var attempts []*audit.LoginAttempt
	for i := 0; i < 10; i++ {
		user := fmt.Sprintf("user-%d", i%3)
		attempts = append(attempts, f.record(t, user, "10.0.0.1", "", i%2 == 0, analysisTime.Add(-time.Duration(i)*time.Second)))
	}

	var wg sync.WaitGroup
	for _, a := range attempts {
		wg.Add(1)
		go func(a *audit.LoginAttempt) {
			defer wg.Done()
			_, err := f.analyzer.AnalyzeUserSecurity(context.Background(), a)
			assert.NoError(t, err)
		}(a)
	}
	wg.Wait()

	_, total, err := f.summaries.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
