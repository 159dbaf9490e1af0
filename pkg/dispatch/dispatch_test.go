package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/bmad-tools/dash/pkg/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDetector struct {
	result probe.Detection
}

func (d *scriptedDetector) Name() string { return "scripted" }

func (d *scriptedDetector) Detect(ctx context.Context, hint probe.Hint) (probe.Detection, error) {
	return d.result, nil
}

// recordingSender captures what would have been typed.
type recordingSender struct {
	texts []string
	keys  []string
	err   error
}

func (r *recordingSender) SendText(ctx context.Context, target probe.Detection, text string) error {
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingSender) SendKey(ctx context.Context, target probe.Detection, key string) error {
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, key)
	return nil
}

func newTestDispatcher(det probe.Detection, sender KeySender) *Dispatcher {
	prober := probe.NewWithDetectors(time.Second, &scriptedDetector{result: det})
	return NewWithSender(prober, sender, time.Second)
}

func TestSendDeliversText(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(probe.Detection{Found: true, PID: 5, MatchType: models.MatchProject, WindowTitle: "demo"}, sender)

	result, err := d.Send(context.Background(), "/home/sam/demo", "hello", ActionSend)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"hello"}, sender.texts)
	assert.Equal(t, "demo", result.WindowTitle)
}

func TestSendActionKeys(t *testing.T) {
	tests := []struct {
		action Action
		key    string
	}{
		{ActionEnter, "Return"},
		{ActionEscape, "Escape"},
		{ActionInterrupt, "ctrl+c"},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			sender := &recordingSender{}
			d := newTestDispatcher(probe.Detection{Found: true, PID: 5, MatchType: models.MatchProject}, sender)

			result, err := d.Send(context.Background(), "/home/sam/demo", "", tt.action)
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, []string{tt.key}, sender.keys)
		})
	}
}

func TestSendRejectsInvalidAction(t *testing.T) {
	d := newTestDispatcher(probe.Detection{Found: true, MatchType: models.MatchProject}, &recordingSender{})
	_, err := d.Send(context.Background(), "/home/sam/demo", "x", Action("poke"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidRequest))
}

func TestSendRejectsEmptyText(t *testing.T) {
	d := newTestDispatcher(probe.Detection{Found: true, MatchType: models.MatchProject}, &recordingSender{})
	_, err := d.Send(context.Background(), "/home/sam/demo", "", ActionSend)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidRequest))
}

func TestSendNoWindowIsStructuredFailure(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(probe.Detection{}, sender)

	result, err := d.Send(context.Background(), "/home/sam/demo", "hello", ActionSend)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, sender.texts)
}

func TestSendRefusesGlobalMatch(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(probe.Detection{Found: true, PID: 5, MatchType: models.MatchGlobal}, sender)

	result, err := d.Send(context.Background(), "/home/sam/demo", "hello", ActionSend)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, sender.texts)
}

func TestDarwinLaunchScriptQuotesPath(t *testing.T) {
	script := darwinLaunchScript(`cd "/tmp/my project" && claude`)
	assert.Equal(t, `tell app "Terminal" to do script "cd \"/tmp/my project\" && claude"`, script)
}

func TestSendTransmissionErrorIsStructured(t *testing.T) {
	sender := &recordingSender{err: errors.SendFailed("window is gone")}
	d := newTestDispatcher(probe.Detection{Found: true, PID: 5, MatchType: models.MatchProject}, sender)

	result, err := d.Send(context.Background(), "/home/sam/demo", "hello", ActionSend)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Detail, "window is gone")
}
