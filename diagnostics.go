package gridline

import (
	"fmt"
	"log/slog"
)

// DiagLevel is the severity of a diagnostic message.
type DiagLevel int

const (
	// DiagInfo is informational (progress, recovery).
	DiagInfo DiagLevel = iota
	// DiagWarning is a recoverable or expected-transient condition.
	DiagWarning
	// DiagError is a fatal-for-the-call condition.
	DiagError
)

// String returns the level name.
func (l DiagLevel) String() string {
	switch l {
	case DiagWarning:
		return "warning"
	case DiagError:
		return "error"
	default:
		return "info"
	}
}

// DiagSink receives diagnostic messages from the build engine. The engine
// never writes to a log framework directly; hosts supply a sink. A panicking
// sink never aborts a build.
type DiagSink func(level DiagLevel, msg string)

// NopSink discards all diagnostics.
func NopSink(DiagLevel, string) {}

// SlogSink adapts a slog.Logger to the DiagSink contract. A nil logger uses
// slog.Default.
func SlogSink(logger *slog.Logger) DiagSink {
	if logger == nil {
		logger = slog.Default()
	}
	return func(level DiagLevel, msg string) {
		switch level {
		case DiagError:
			logger.Error(msg)
		case DiagWarning:
			logger.Warn(msg)
		default:
			logger.Info(msg)
		}
	}
}

// BuildDiagnostics exposes the table's failure counters.
type BuildDiagnostics struct {
	// ConsecutiveFailures is the current run of failed build/rebuild calls.
	ConsecutiveFailures int
	// TotalFailures counts every soft and fatal failure since construction.
	TotalFailures int
	// TotalBuilds counts successful build/rebuild completions.
	TotalBuilds int
	// LastFailure is the message of the most recent failure, if any.
	LastFailure string
}

// failureTracker implements the diagnostics state machine: a consecutive
// failure counter that escalates warning severity after sustained failure,
// rate-limits repeat logging, and emits a recovery line on the next success.
type failureTracker struct {
	consecutive   int
	totalFailures int
	totalBuilds   int
	lastFailure   string
	logEvery      int
	escalateAfter int
}

func newFailureTracker(logEvery, escalateAfter int) *failureTracker {
	if logEvery <= 0 {
		logEvery = 100
	}
	if escalateAfter <= 0 {
		escalateAfter = 10
	}
	return &failureTracker{logEvery: logEvery, escalateAfter: escalateAfter}
}

// failure records one failed call. Soft failures escalate from Warning to
// Error once the consecutive count passes the escalation threshold. The first
// occurrence is always logged, then every logEvery-th, so a session stuck in
// a failure state does not flood the sink.
func (t *failureTracker) failure(emit func(DiagLevel, string), level DiagLevel, msg string) {
	t.consecutive++
	t.totalFailures++
	t.lastFailure = msg

	if level == DiagWarning && t.consecutive >= t.escalateAfter {
		level = DiagError
	}
	if t.consecutive == 1 || t.consecutive%t.logEvery == 0 {
		emit(level, fmt.Sprintf("%s (consecutive failures: %d)", msg, t.consecutive))
	}
}

// success records one completed call, logging recovery if a failure run ends.
func (t *failureTracker) success(emit func(DiagLevel, string)) {
	t.totalBuilds++
	if t.consecutive > 0 {
		emit(DiagInfo, fmt.Sprintf("build recovered after %d consecutive failures", t.consecutive))
		t.consecutive = 0
	}
}

func (t *failureTracker) reset() {
	t.consecutive = 0
}

func (t *failureTracker) snapshot() BuildDiagnostics {
	return BuildDiagnostics{
		ConsecutiveFailures: t.consecutive,
		TotalFailures:       t.totalFailures,
		TotalBuilds:         t.totalBuilds,
		LastFailure:         t.lastFailure,
	}
}
