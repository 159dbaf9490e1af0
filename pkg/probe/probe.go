// Package probe detects whether the external assistant process is running
// and whether it is scoped to a given project. Detection is a prioritized
// chain of independent signals; precedence between disagreeing signals is
// configuration, not hard-coded certainty.
package probe

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmad-tools/dash/config"
	"github.com/bmad-tools/dash/logging"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/sirupsen/logrus"
)

// Hint carries the project the caller wants the detection scoped to.
type Hint struct {
	ProjectPath string
	ProjectName string
}

// Detection is the outcome of one signal, or of the whole chain.
type Detection struct {
	Found       bool
	PID         int
	Cwd         string
	WindowTitle string
	MatchType   models.MatchType
	// Signal names the detector that produced the evidence.
	Signal string
	// Indeterminate is set when every signal failed to produce evidence for
	// a reason other than "nothing matched" (timeouts, permission errors).
	Indeterminate bool
	Reason        string
}

// Detector is one independent detection signal.
type Detector interface {
	Name() string
	Detect(ctx context.Context, hint Hint) (Detection, error)
}

// Prober composes detectors with a fixed precedence. The first signal that
// produces a project-scoped match wins; a global match from an earlier
// signal is kept only if no later signal can upgrade it to a project match.
type Prober struct {
	detectors []Detector
	timeout   time.Duration
	exclude   *exclusionRegistry
	logger    *logrus.Entry
}

// New builds a prober from configuration. Unknown precedence names are
// skipped with a warning so a typo degrades detection instead of breaking it.
func New(cfg config.Probe) *Prober {
	logger := logging.NewLogger("probe")
	registry := newExclusionRegistry()
	run := newExecRunner(registry)

	available := map[string]Detector{
		"cmdline": &cmdlineDetector{run: run, exclude: registry},
		"shell":   &shellDetector{run: run, exclude: registry},
		"window":  &windowDetector{run: run},
	}

	p := &Prober{
		timeout: cfg.SignalTimeout,
		exclude: registry,
		logger:  logger,
	}
	for _, name := range cfg.Precedence {
		det, ok := available[name]
		if !ok {
			logger.WithField("signal", name).Warn("Unknown detection signal in probe precedence, skipping")
			continue
		}
		p.detectors = append(p.detectors, det)
	}
	return p
}

// NewWithDetectors builds a prober over an explicit chain. Used in tests and
// by the dispatcher, which must agree with the probe on target resolution.
func NewWithDetectors(timeout time.Duration, detectors ...Detector) *Prober {
	return &Prober{
		detectors: detectors,
		timeout:   timeout,
		exclude:   newExclusionRegistry(),
		logger:    logging.NewLogger("probe"),
	}
}

// Detect runs the chain for a project path. It never returns an error: a
// failed or timed-out signal contributes no evidence, and a chain with only
// failed signals reports an indeterminate detection.
func (p *Prober) Detect(ctx context.Context, projectPath string) Detection {
	hint := Hint{ProjectPath: projectPath}
	if projectPath != "" {
		hint.ProjectName = filepath.Base(projectPath)
	}

	var global *Detection
	failures := 0
	var firstReason string

	for _, det := range p.detectors {
		sigCtx, cancel := context.WithTimeout(ctx, p.timeout)
		result, err := det.Detect(sigCtx, hint)
		cancel()

		if err != nil {
			// Timed-out or failed signal: no evidence, not an error.
			failures++
			if firstReason == "" {
				firstReason = det.Name() + ": " + err.Error()
			}
			p.logger.WithField("signal", det.Name()).WithError(err).Debug("Detection signal produced no evidence")
			continue
		}
		if !result.Found {
			continue
		}
		if p.exclude.contains(result.PID) {
			p.logger.WithField("pid", result.PID).Debug("Ignoring probe's own subprocess")
			continue
		}

		result.Signal = det.Name()
		if result.MatchType == models.MatchProject {
			return result
		}
		if global == nil {
			saved := result
			global = &saved
		}
	}

	if global != nil {
		global.MatchType = models.MatchGlobal
		return *global
	}
	if failures > 0 && failures == len(p.detectors) {
		return Detection{Indeterminate: true, Reason: firstReason, MatchType: models.MatchNone}
	}
	return Detection{MatchType: models.MatchNone}
}

// normalizeForMatch folds a path or title into a comparison-safe form:
// lowercase, forward slashes, non-alphanumerics stripped. This keeps project
// matching working when a path with non-ASCII characters comes back mangled
// from process enumeration.
func normalizeForMatch(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "\\", "/"))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '/' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matchesProject reports whether candidate (a cwd, command line, or window
// title) refers to the hinted project.
func matchesProject(candidate string, hint Hint) bool {
	if hint.ProjectPath == "" {
		return false
	}
	normCandidate := normalizeForMatch(candidate)
	if normPath := normalizeForMatch(hint.ProjectPath); normPath != "" && strings.Contains(normCandidate, normPath) {
		return true
	}
	if normName := normalizeForMatch(hint.ProjectName); normName != "" && strings.Contains(normCandidate, normName) {
		return true
	}
	return false
}
