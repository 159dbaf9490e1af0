package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bmad-tools/dash/config"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDetector is a scripted detection signal.
type fakeDetector struct {
	name   string
	result Detection
	err    error
	block  bool
}

func (f *fakeDetector) Name() string { return f.name }

func (f *fakeDetector) Detect(ctx context.Context, hint Hint) (Detection, error) {
	if f.block {
		<-ctx.Done()
		return Detection{}, ctx.Err()
	}
	return f.result, f.err
}

func TestDetectFirstProjectMatchWins(t *testing.T) {
	p := NewWithDetectors(time.Second,
		&fakeDetector{name: "cmdline", result: Detection{Found: true, PID: 11, MatchType: models.MatchProject}},
		&fakeDetector{name: "window", result: Detection{Found: true, PID: 22, MatchType: models.MatchProject}},
	)

	det := p.Detect(context.Background(), "/home/sam/demo")
	assert.True(t, det.Found)
	assert.Equal(t, 11, det.PID)
	assert.Equal(t, "cmdline", det.Signal)
}

func TestDetectLaterSignalUpgradesGlobalMatch(t *testing.T) {
	p := NewWithDetectors(time.Second,
		&fakeDetector{name: "cmdline", result: Detection{Found: true, PID: 11, MatchType: models.MatchGlobal}},
		&fakeDetector{name: "window", result: Detection{Found: true, PID: 22, MatchType: models.MatchProject}},
	)

	det := p.Detect(context.Background(), "/home/sam/demo")
	assert.Equal(t, models.MatchProject, det.MatchType)
	assert.Equal(t, "window", det.Signal)
}

func TestDetectKeepsFirstGlobalMatch(t *testing.T) {
	p := NewWithDetectors(time.Second,
		&fakeDetector{name: "cmdline", result: Detection{Found: true, PID: 11, MatchType: models.MatchGlobal}},
		&fakeDetector{name: "window", result: Detection{Found: true, PID: 22, MatchType: models.MatchGlobal}},
	)

	det := p.Detect(context.Background(), "/home/sam/demo")
	assert.Equal(t, models.MatchGlobal, det.MatchType)
	assert.Equal(t, 11, det.PID)
	assert.Equal(t, "cmdline", det.Signal)
}

func TestDetectAllSignalsFailedIsIndeterminate(t *testing.T) {
	p := NewWithDetectors(time.Second,
		&fakeDetector{name: "cmdline", err: errors.New("ps: permission denied")},
		&fakeDetector{name: "window", err: errors.New("no display")},
	)

	det := p.Detect(context.Background(), "/home/sam/demo")
	assert.False(t, det.Found)
	assert.True(t, det.Indeterminate)
	assert.Contains(t, det.Reason, "cmdline")
}

func TestDetectPartialFailureIsNotIndeterminate(t *testing.T) {
	p := NewWithDetectors(time.Second,
		&fakeDetector{name: "cmdline", err: errors.New("ps: broken")},
		&fakeDetector{name: "window", result: Detection{}},
	)

	det := p.Detect(context.Background(), "/home/sam/demo")
	assert.False(t, det.Found)
	assert.False(t, det.Indeterminate)
	assert.Equal(t, models.MatchNone, det.MatchType)
}

func TestDetectSignalTimeout(t *testing.T) {
	p := NewWithDetectors(20*time.Millisecond,
		&fakeDetector{name: "cmdline", block: true},
		&fakeDetector{name: "window", result: Detection{Found: true, PID: 7, MatchType: models.MatchProject}},
	)

	start := time.Now()
	det := p.Detect(context.Background(), "/home/sam/demo")
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, det.Found)
	assert.Equal(t, "window", det.Signal)
}

func TestDetectExcludesRegisteredPIDs(t *testing.T) {
	p := NewWithDetectors(time.Second,
		&fakeDetector{name: "cmdline", result: Detection{Found: true, PID: 99, MatchType: models.MatchProject}},
	)
	p.exclude.add(99)

	det := p.Detect(context.Background(), "/home/sam/demo")
	assert.False(t, det.Found)
}

func TestNewSkipsUnknownPrecedenceNames(t *testing.T) {
	p := New(config.Probe{
		Precedence:    []string{"cmdline", "sonar", "window"},
		SignalTimeout: time.Second,
	})
	require.Len(t, p.detectors, 2)
	assert.Equal(t, "cmdline", p.detectors[0].Name())
	assert.Equal(t, "window", p.detectors[1].Name())
}

func TestNormalizeForMatch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home/sam/Demo-App", "/home/sam/demoapp"},
		{`C:\work\demo`, "c/work/demo"},
		{"café-demo", "cafdemo"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeForMatch(tt.in), "input %q", tt.in)
	}
}

func TestMatchesProject(t *testing.T) {
	hint := Hint{ProjectPath: "/home/sam/demo-app", ProjectName: "demo-app"}
	assert.True(t, matchesProject("claude running in /home/sam/demo-app", hint))
	assert.True(t, matchesProject("Terminal - demo_app - claude", hint))
	assert.False(t, matchesProject("claude in /srv/other", hint))
	assert.False(t, matchesProject("anything", Hint{}))
}
