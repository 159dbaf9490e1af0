package server

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/internal/daemon/store"
	"github.com/bmad-tools/dash/pkg/dispatch"
	"github.com/bmad-tools/dash/pkg/manifest"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/bmad-tools/dash/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.ok(w, map[string]interface{}{
		"status":      "ok",
		"version":     version.GetInfo().Version,
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
		"subscribers": s.store.SubscriberCount(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.ok(w, map[string]interface{}{
		"server": map[string]interface{}{
			"host":              s.cfg.Server.Host,
			"port":              s.cfg.Server.Port,
			"heartbeatInterval": s.cfg.Server.HeartbeatInterval.String(),
		},
		"watch": map[string]interface{}{
			"fileInterval":  s.cfg.Watch.FileInterval.String(),
			"probeInterval": s.cfg.Watch.ProbeInterval.String(),
			"debounce":      s.cfg.Watch.Debounce.String(),
		},
		"probe": map[string]interface{}{
			"precedence":    s.cfg.Probe.Precedence,
			"signalTimeout": s.cfg.Probe.SignalTimeout.String(),
		},
	})
}

func (s *Server) handleProjectOpen(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if req.Path == "" {
		s.fail(w, errors.InvalidRequest("path is required"))
		return
	}
	snap, err := s.sessions.Open(r.Context(), req.Path)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, snap)
}

func (s *Server) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Path         string   `json:"path"`
		UserName     string   `json:"userName"`
		Language     string   `json:"language"`
		OutputFolder string   `json:"outputFolder"`
		Modules      []string `json:"modules"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if req.Path == "" {
		s.fail(w, errors.InvalidRequest("path is required"))
		return
	}
	snap, err := s.sessions.Create(r.Context(), req.Path, manifest.ScaffoldOptions{
		UserName:              req.UserName,
		CommunicationLanguage: req.Language,
		OutputFolder:          req.OutputFolder,
		Modules:               req.Modules,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, snap)
}

func (s *Server) handleRecentProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.ok(w, s.sessions.Recent().All())
	case http.MethodDelete:
		path := r.URL.Query().Get("path")
		if path == "" {
			s.fail(w, errors.InvalidRequest("path query parameter is required"))
			return
		}
		removed, err := s.sessions.Recent().Remove(path)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.ok(w, map[string]int{"removed": removed})
	default:
		s.fail(w, errors.InvalidRequest("method not allowed"))
	}
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	// The pull path serves the last-published snapshot so GET and the event
	// stream always agree on values.
	if snap.Workflow != nil {
		s.ok(w, snap.Workflow)
		return
	}
	s.sessions.Reconciler().RunFiles(r.Context())
	if wf := s.store.Get().Workflow; wf != nil {
		s.ok(w, wf)
		return
	}
	wf, err := manifest.ReadWorkflow(snap.ProjectPath)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, wf)
}

func (s *Server) handleSprintStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	sp, err := s.sprintSnapshot(r, snap)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, sp)
}

// sprintSnapshot returns the store's sprint state, running a file pass on
// demand when none has been published yet. Surfaces the manifest read error
// when even that pass could not produce state.
func (s *Server) sprintSnapshot(r *http.Request, snap store.Snapshot) (*models.SprintStatus, error) {
	if snap.Sprint != nil {
		return snap.Sprint, nil
	}
	s.sessions.Reconciler().RunFiles(r.Context())
	if sp := s.store.Get().Sprint; sp != nil {
		return sp, nil
	}
	return manifest.ReadSprint(snap.ProjectPath)
}

func (s *Server) handleActiveStory(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	sp, err := s.sprintSnapshot(r, snap)
	if err != nil {
		s.fail(w, err)
		return
	}
	story := sp.NextActiveStory()
	if story == nil {
		s.ok(w, map[string]interface{}{"story": nil})
		return
	}
	s.ok(w, map[string]interface{}{"story": story})
}

func (s *Server) handleStoryByID(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/story/")
	if id == "" || strings.Contains(id, "/") {
		s.fail(w, errors.InvalidRequest("story id is required"))
		return
	}
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	sp, err := s.sprintSnapshot(r, snap)
	if err != nil {
		s.fail(w, err)
		return
	}
	for _, epic := range sp.Epics {
		for _, story := range epic.Stories {
			if story.Key == id || story.StoryID == id {
				s.ok(w, map[string]interface{}{
					"id":         story.Key,
					"storyId":    story.StoryID,
					"name":       story.Name,
					"status":     story.Status,
					"epicNumber": epic.Number,
				})
				return
			}
		}
	}
	s.fail(w, errors.StoryNotFound(id))
}

func (s *Server) handleImplementationFlow(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	flow, err := manifest.ImplementationFlow(snap.ProjectPath)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, flow)
}

func (s *Server) handleStoryUpdate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		StoryID string `json:"storyId"`
		Status  string `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	state := models.StoryState(req.Status)
	if req.StoryID == "" || !state.Valid() {
		s.fail(w, errors.InvalidRequest(fmt.Sprintf("invalid story update: id=%q status=%q", req.StoryID, req.Status)))
		return
	}
	result, err := s.sessions.OverrideStory(r.Context(), req.StoryID, state)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, result)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	agents, err := manifest.ListAgents(snap.ProjectPath)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, agents)
}

func (s *Server) handleAgentByName(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/agents/")
	if name == "" || strings.Contains(name, "/") {
		s.fail(w, errors.InvalidRequest("invalid agent name"))
		return
	}
	agent, err := manifest.ReadAgent(snap.ProjectPath, name)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, agent)
}

func (s *Server) handleClaudeStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	if snap.Claude != nil {
		s.ok(w, snap.Claude)
		return
	}
	// No pass has run yet; probe on demand.
	s.sessions.Reconciler().RunProbe(r.Context())
	s.ok(w, s.store.Get().Claude)
}

func (s *Server) handleClaudeLaunch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Path      string `json:"path"`
		Dangerous bool   `json:"dangerousMode"`
	}
	_ = decode(r, &req) // empty body means defaults

	path := req.Path
	if path == "" {
		path = s.store.Get().ProjectPath
	}
	if path == "" {
		if mr := s.sessions.Recent().MostRecent(); mr != nil {
			path = mr.Path
		}
	}
	if path == "" {
		s.fail(w, errors.InvalidRequest("no project path given and no recent projects"))
		return
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		s.fail(w, errors.ProjectNotFound(path))
		return
	}
	if err := s.dispatcher.Launch(r.Context(), path, req.Dangerous); err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, map[string]interface{}{
		"status":        "launched",
		"path":          path,
		"dangerousMode": req.Dangerous,
	})
}

func (s *Server) handleSendInput(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	var req struct {
		Text   string `json:"text"`
		Action string `json:"action"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	action := dispatch.Action(req.Action)
	if req.Action == "" {
		action = dispatch.ActionSend
	}
	result, err := s.dispatcher.Send(r.Context(), snap.ProjectPath, req.Text, action)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, result)
}

func (s *Server) handleClaudeDebug(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requireProject()
	if err != nil {
		s.fail(w, err)
		return
	}
	det := s.prober.Detect(r.Context(), snap.ProjectPath)
	s.ok(w, map[string]interface{}{
		"found":         det.Found,
		"pid":           det.PID,
		"cwd":           det.Cwd,
		"windowTitle":   det.WindowTitle,
		"matchType":     det.MatchType,
		"signal":        det.Signal,
		"indeterminate": det.Indeterminate,
		"reason":        det.Reason,
		"precedence":    s.cfg.Probe.Precedence,
	})
}

func (s *Server) handleCommandExecute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Command string `json:"command"`
		Agent   string `json:"agent"`
		Send    bool   `json:"send"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if req.Command == "" {
		s.fail(w, errors.InvalidRequest("command is required"))
		return
	}

	// Bare workflow names are qualified; slash commands and agent menu
	// shortcuts pass through untouched.
	full := req.Command
	if !strings.HasPrefix(full, "/") && !strings.HasPrefix(full, "*") {
		full = "/bmad:bmm:workflows:" + full
	}

	// The command always lands on the clipboard so the user can paste it
	// even when direct dispatch is unavailable.
	clipboardOK := clipboard.WriteAll(full) == nil

	resp := map[string]interface{}{
		"command":  full,
		"fallback": !clipboardOK,
	}
	if req.Agent != "" {
		resp["agent"] = req.Agent
	}
	if req.Send {
		snap, err := s.requireProject()
		if err != nil {
			s.fail(w, err)
			return
		}
		result, err := s.dispatcher.Send(r.Context(), snap.ProjectPath, full, dispatch.ActionSend)
		if err != nil {
			s.fail(w, err)
			return
		}
		resp["sent"] = result.Success
		resp["detail"] = result.Detail
	}
	s.ok(w, resp)
}

// requireProject fetches the snapshot and rejects the request when no
// project session is open.
func (s *Server) requireProject() (store.Snapshot, error) {
	snap := s.store.Get()
	if snap.ProjectPath == "" {
		return snap, errors.InvalidRequest("no project is open")
	}
	return snap, nil
}
