package probe

import (
	"context"
	"runtime"
	"strconv"
	"strings"

	"github.com/bmad-tools/dash/pkg/models"
)

// processRow is one parsed line of a process-table listing.
type processRow struct {
	pid     int
	command string
}

// listProcesses enumerates the process table via ps. A single enumeration is
// shared by the cmdline and shell signals so both see a consistent view.
func listProcesses(ctx context.Context, run Runner) ([]processRow, error) {
	out, err := run(ctx, "ps", "-eo", "pid=,command=")
	if err != nil {
		return nil, err
	}
	var rows []processRow
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		rows = append(rows, processRow{pid: pid, command: strings.TrimSpace(fields[1])})
	}
	return rows, nil
}

// isAssistantCommand matches the executable/command-line signature of the
// external assistant.
func isAssistantCommand(command string) bool {
	lower := strings.ToLower(command)
	if strings.Contains(lower, "@anthropic-ai") || strings.Contains(lower, "claude-code") {
		return true
	}
	for _, field := range strings.Fields(lower) {
		base := field[strings.LastIndex(field, "/")+1:]
		if base == "claude" {
			return true
		}
	}
	return false
}

// cmdlineDetector inspects the process table for the assistant's command-line
// signature and resolves the match scope via the process working directory.
type cmdlineDetector struct {
	run     Runner
	exclude *exclusionRegistry
}

func (d *cmdlineDetector) Name() string { return "cmdline" }

func (d *cmdlineDetector) Detect(ctx context.Context, hint Hint) (Detection, error) {
	rows, err := listProcesses(ctx, d.run)
	if err != nil {
		return Detection{}, err
	}

	var first *processRow
	for i := range rows {
		row := rows[i]
		if !isAssistantCommand(row.command) || d.exclude.contains(row.pid) {
			continue
		}
		if matchesProject(row.command, hint) {
			return Detection{Found: true, PID: row.pid, Cwd: hint.ProjectPath, MatchType: models.MatchProject}, nil
		}
		cwd := d.processCwd(ctx, row.pid)
		if cwd != "" && matchesProject(cwd, hint) {
			return Detection{Found: true, PID: row.pid, Cwd: cwd, MatchType: models.MatchProject}, nil
		}
		if first == nil {
			saved := row
			first = &saved
		}
	}
	if first != nil {
		return Detection{
			Found:     true,
			PID:       first.pid,
			Cwd:       d.processCwd(ctx, first.pid),
			MatchType: models.MatchGlobal,
		}, nil
	}
	return Detection{}, nil
}

// processCwd resolves a process's working directory from its lsof cwd row.
// Any failure yields "" (no evidence), never an error.
func (d *cmdlineDetector) processCwd(ctx context.Context, pid int) string {
	out, err := d.run(ctx, "lsof", "-a", "-d", "cwd", "-p", strconv.Itoa(pid), "-Fn")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "n") {
			return strings.TrimSpace(line[1:])
		}
	}
	return ""
}

// shellDetector looks for a terminal shell carrying this system's own launch
// signature ("cd <project> && claude"), which covers an assistant running as
// a child of a terminal we spawned where the assistant's own command line
// carries no project hint.
type shellDetector struct {
	run     Runner
	exclude *exclusionRegistry
}

func (d *shellDetector) Name() string { return "shell" }

func (d *shellDetector) Detect(ctx context.Context, hint Hint) (Detection, error) {
	rows, err := listProcesses(ctx, d.run)
	if err != nil {
		return Detection{}, err
	}

	for _, row := range rows {
		if d.exclude.contains(row.pid) {
			continue
		}
		lower := strings.ToLower(row.command)
		if !strings.Contains(lower, "claude") || !strings.Contains(lower, "cd ") {
			continue
		}
		if !isShellCommand(lower) {
			continue
		}
		match := models.MatchGlobal
		if matchesProject(row.command, hint) {
			match = models.MatchProject
		}
		return Detection{Found: true, PID: row.pid, Cwd: hint.ProjectPath, MatchType: match}, nil
	}
	return Detection{}, nil
}

func isShellCommand(command string) bool {
	for _, shell := range []string{"bash", "zsh", "sh ", "sh -", "fish"} {
		if strings.Contains(command, shell) {
			return true
		}
	}
	return false
}

// windowDetector matches window titles. It is the weakest signal, used when
// process inspection is inconclusive (e.g. permission-restricted
// environments).
type windowDetector struct {
	run Runner
}

func (d *windowDetector) Name() string { return "window" }

func (d *windowDetector) Detect(ctx context.Context, hint Hint) (Detection, error) {
	titles, err := d.listWindowTitles(ctx)
	if err != nil {
		return Detection{}, err
	}

	var global string
	for _, title := range titles {
		lower := strings.ToLower(title)
		if !strings.Contains(lower, "claude") {
			continue
		}
		if matchesProject(title, hint) {
			return Detection{Found: true, WindowTitle: title, Cwd: hint.ProjectPath, MatchType: models.MatchProject}, nil
		}
		if global == "" {
			global = title
		}
	}
	if global != "" {
		return Detection{Found: true, WindowTitle: global, MatchType: models.MatchGlobal}, nil
	}
	return Detection{}, nil
}

func (d *windowDetector) listWindowTitles(ctx context.Context) ([]string, error) {
	var out string
	var err error
	switch runtime.GOOS {
	case "darwin":
		out, err = d.run(ctx, "osascript", "-e",
			`tell application "System Events" to get the title of every window of (every process whose visible is true)`)
	default:
		out, err = d.run(ctx, "xdotool", "search", "--name", ".", "getwindowname", "%@")
	}
	if err != nil {
		return nil, err
	}
	var titles []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			titles = append(titles, line)
		}
	}
	return titles, nil
}
