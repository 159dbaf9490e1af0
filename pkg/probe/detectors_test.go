package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bmad-tools/dash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner serves scripted command output keyed by the helper name.
func fakeRunner(outputs map[string]string) Runner {
	return func(ctx context.Context, name string, args ...string) (string, error) {
		if out, ok := outputs[name]; ok {
			return out, nil
		}
		return "", errors.New(name + ": not scripted")
	}
}

func TestIsAssistantCommand(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"claude", true},
		{"/usr/local/bin/claude --resume", true},
		{"node /opt/@anthropic-ai/claude-code/cli.js", true},
		{"npx claude-code", true},
		{"claudette", false},
		{"vim claude-notes.md", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isAssistantCommand(tt.command), "command %q", tt.command)
	}
}

func TestCmdlineDetectorProjectMatchFromCommand(t *testing.T) {
	ps := "  101 /usr/bin/claude --project /home/sam/demo\n  202 vim notes.md\n"
	d := &cmdlineDetector{
		run:     fakeRunner(map[string]string{"ps": ps}),
		exclude: newExclusionRegistry(),
	}

	det, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo", ProjectName: "demo"})
	require.NoError(t, err)
	assert.True(t, det.Found)
	assert.Equal(t, 101, det.PID)
	assert.Equal(t, models.MatchProject, det.MatchType)
}

func TestCmdlineDetectorResolvesCwd(t *testing.T) {
	outputs := map[string]string{
		"ps":   "  101 claude\n",
		"lsof": "p101\nn/home/sam/demo\n",
	}
	d := &cmdlineDetector{run: fakeRunner(outputs), exclude: newExclusionRegistry()}

	det, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo", ProjectName: "demo"})
	require.NoError(t, err)
	assert.Equal(t, models.MatchProject, det.MatchType)
	assert.Equal(t, "/home/sam/demo", det.Cwd)
}

func TestCmdlineDetectorFallsBackToGlobal(t *testing.T) {
	outputs := map[string]string{
		"ps":   "  101 claude\n",
		"lsof": "p101\nn/srv/elsewhere\n",
	}
	d := &cmdlineDetector{run: fakeRunner(outputs), exclude: newExclusionRegistry()}

	det, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo", ProjectName: "demo"})
	require.NoError(t, err)
	assert.True(t, det.Found)
	assert.Equal(t, models.MatchGlobal, det.MatchType)
}

func TestCmdlineDetectorSkipsExcludedPIDs(t *testing.T) {
	registry := newExclusionRegistry()
	registry.add(101)
	d := &cmdlineDetector{
		run:     fakeRunner(map[string]string{"ps": "  101 claude\n"}),
		exclude: registry,
	}

	det, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo"})
	require.NoError(t, err)
	assert.False(t, det.Found)
}

func TestCmdlineDetectorPropagatesEnumerationFailure(t *testing.T) {
	d := &cmdlineDetector{run: fakeRunner(nil), exclude: newExclusionRegistry()}
	_, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo"})
	assert.Error(t, err)
}

func TestShellDetectorMatchesLaunchSignature(t *testing.T) {
	ps := "  300 bash -c cd /home/sam/demo && claude\n"
	d := &shellDetector{run: fakeRunner(map[string]string{"ps": ps}), exclude: newExclusionRegistry()}

	det, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo", ProjectName: "demo"})
	require.NoError(t, err)
	assert.True(t, det.Found)
	assert.Equal(t, 300, det.PID)
	assert.Equal(t, models.MatchProject, det.MatchType)
}

func TestShellDetectorIgnoresPlainShells(t *testing.T) {
	ps := "  300 bash -l\n  301 zsh\n"
	d := &shellDetector{run: fakeRunner(map[string]string{"ps": ps}), exclude: newExclusionRegistry()}

	det, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo"})
	require.NoError(t, err)
	assert.False(t, det.Found)
}

func TestWindowDetectorTitleMatch(t *testing.T) {
	titles := strings.Join([]string{
		"Mail",
		"demo - claude - Terminal",
		"claude somewhere else",
	}, "\n")
	d := &windowDetector{run: fakeRunner(map[string]string{"xdotool": titles, "osascript": titles})}

	det, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo", ProjectName: "demo"})
	require.NoError(t, err)
	assert.True(t, det.Found)
	assert.Equal(t, models.MatchProject, det.MatchType)
	assert.Equal(t, "demo - claude - Terminal", det.WindowTitle)
}

func TestWindowDetectorGlobalFallback(t *testing.T) {
	d := &windowDetector{run: fakeRunner(map[string]string{"xdotool": "claude elsewhere\n", "osascript": "claude elsewhere\n"})}

	det, err := d.Detect(context.Background(), Hint{ProjectPath: "/home/sam/demo", ProjectName: "demo"})
	require.NoError(t, err)
	assert.True(t, det.Found)
	assert.Equal(t, models.MatchGlobal, det.MatchType)
}

func TestListProcessesParsing(t *testing.T) {
	out := "  12 /bin/sleep 5\n\nbroken line\n  34 claude\n"
	rows, err := listProcesses(context.Background(), fakeRunner(map[string]string{"ps": out}))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 12, rows[0].pid)
	assert.Equal(t, "/bin/sleep 5", rows[0].command)
	assert.Equal(t, 34, rows[1].pid)
}
