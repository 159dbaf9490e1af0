package probe

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"
)

// Runner executes an enumeration helper and returns its stdout. Injected so
// detectors can be tested against fake process tables.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// exclusionRegistry tracks PIDs that must never count as detection evidence:
// the daemon itself and every helper subprocess the probe spawns. Without
// this, a `pgrep -f claude` helper matches its own command line and the
// probe reports "still running" after the real process exited.
type exclusionRegistry struct {
	mu   sync.Mutex
	pids map[int]struct{}
}

func newExclusionRegistry() *exclusionRegistry {
	r := &exclusionRegistry{pids: make(map[int]struct{})}
	r.add(os.Getpid())
	return r
}

func (r *exclusionRegistry) add(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pids[pid] = struct{}{}
}

func (r *exclusionRegistry) contains(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pids[pid]
	return ok
}

// newExecRunner returns a Runner backed by exec.CommandContext that registers
// each helper's PID in the exclusion registry for the helper's lifetime and
// beyond (a recently-exited helper may still appear in a ps listing taken
// concurrently).
func newExecRunner(registry *exclusionRegistry) Runner {
	return func(ctx context.Context, name string, args ...string) (string, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Start(); err != nil {
			return "", err
		}
		registry.add(cmd.Process.Pid)
		if err := cmd.Wait(); err != nil {
			return "", err
		}
		return out.String(), nil
	}
}
