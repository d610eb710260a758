package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/syssam/featgen"
	"github.com/syssam/featgen/catalog"
	"github.com/syssam/featgen/instance"
	"github.com/syssam/featgen/question"
	"github.com/syssam/featgen/storage"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// GenerateRequest is the body of a basic generation request. Answers maps
// question ids to answer values; unanswered questions take their default.
type GenerateRequest struct {
	Answers map[int]string `json:"answers,omitempty"`
	// Save stores the result as a run.
	Save bool `json:"save,omitempty"`
}

// AdvancedRequest is the body of an advanced generation request.
type AdvancedRequest struct {
	Constraints []question.PropertyConstraint `json:"constraints"`
	Save        bool                          `json:"save,omitempty"`
}

// InstanceView is a named instance in a response.
type InstanceView struct {
	Name        string `json:"name"`
	Fingerprint int64  `json:"fingerprint"`
	Tree        string `json:"tree"`
}

// GenerateResponse is the result of a generation request. Error is set when
// generation stopped early; Instances then holds the partial result.
type GenerateResponse struct {
	Task      string         `json:"task"`
	Names     []string       `json:"names"`
	Instances []InstanceView `json:"instances"`
	Error     string         `json:"error,omitempty"`
	Run       string         `json:"run,omitempty"`
}

// TaskView describes a task of the catalog.
type TaskView struct {
	Task        string `json:"task"`
	Description string `json:"description,omitempty"`
	Questions   int    `json:"questions"`
}

// RunView describes a stored run.
type RunView struct {
	ID        string         `json:"id"`
	Task      string         `json:"task"`
	Mode      string         `json:"mode"`
	Created   time.Time      `json:"created"`
	Instances []InstanceView `json:"instances,omitempty"`
}

// Handler serves generation requests for the tasks of a catalog. Each
// request gets its own generator over a freshly built model.
type Handler struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	// version counts catalog replacements; it is part of every cache key.
	version uint64

	store *storage.Store
	cache featgen.Cache
	opts  []instance.Option
	log   *slog.Logger
}

// NewHandler creates a handler. store may be nil, in which case run
// endpoints answer 404 and Save is ignored. opts configure every generator.
func NewHandler(cat *catalog.Catalog, store *storage.Store, log *slog.Logger, opts ...instance.Option) *Handler {
	return &Handler{catalog: cat, store: store, log: log, opts: opts}
}

// SetCache makes the handler answer repeated requests that are not saved
// from c. It must be called before serving.
func (h *Handler) SetCache(c featgen.Cache) {
	h.cache = c
}

// SetCatalog replaces the catalog and clears the cache. Requests in flight
// keep the old one.
func (h *Handler) SetCatalog(c *catalog.Catalog) {
	h.mu.Lock()
	h.catalog = c
	h.version++
	h.mu.Unlock()
	if h.cache != nil {
		if err := h.cache.Clear(context.Background()); err != nil {
			h.log.Warn("Failed to clear cache", "err", err)
		}
	}
}

// Catalog returns the current catalog.
func (h *Handler) Catalog() *catalog.Catalog {
	c, _ := h.current()
	return c
}

func (h *Handler) current() (*catalog.Catalog, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.catalog, h.version
}

// HandleTasks lists the tasks.
//
// URL format: GET /api/tasks
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	entries := h.Catalog().Entries()
	views := make([]TaskView, 0, len(entries))
	for _, e := range entries {
		v := TaskView{Task: e.Task, Description: e.Description}
		if e.Questions != nil {
			v.Questions = len(e.Questions.Questions)
		}
		views = append(views, v)
	}
	h.writeJSON(w, http.StatusOK, views)
}

// HandleQuestions returns the questionnaire of a task.
//
// URL format: GET /api/tasks/{task}/questions
func (h *Handler) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	e, _, ok := h.entry(w, r)
	if !ok {
		return
	}
	if e.Questions == nil {
		http.Error(w, "Task has no questionnaire", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, e.Questions)
}

// HandleGenerate runs the basic generation flow.
//
// URL format: POST /api/tasks/{task}/instances
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	e, version, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}
	answers := map[*question.Question]*question.Answer{}
	switch {
	case e.Questions != nil:
		picked, err := e.Questions.Select(req.Answers)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		answers = picked
	case len(req.Answers) > 0:
		http.Error(w, "Task has no questionnaire", http.StatusBadRequest)
		return
	}
	key, hit := h.cached(w, r, e.Task, storage.ModeBasic, version, req.Save, req.Answers)
	if hit {
		return
	}
	g, err := e.Generator(h.opts...)
	if err != nil {
		h.log.Error("Failed to create generator", "task", e.Task, "err", err)
		http.Error(w, "Failed to create generator", http.StatusInternalServerError)
		return
	}
	res := g.Generate(r.Context(), answers)
	h.respond(w, r, e.Task, storage.ModeBasic, req.Save, key, res)
}

// HandleGenerateAdvanced runs the advanced generation flow.
//
// URL format: POST /api/tasks/{task}/instances/advanced
func (h *Handler) HandleGenerateAdvanced(w http.ResponseWriter, r *http.Request) {
	e, version, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req AdvancedRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, hit := h.cached(w, r, e.Task, storage.ModeAdvanced, version, req.Save, req.Constraints)
	if hit {
		return
	}
	g, err := e.Generator(h.opts...)
	if err != nil {
		h.log.Error("Failed to create generator", "task", e.Task, "err", err)
		http.Error(w, "Failed to create generator", http.StatusInternalServerError)
		return
	}
	res := g.GenerateAdvanced(r.Context(), req.Constraints)
	h.respond(w, r, e.Task, storage.ModeAdvanced, req.Save, key, res)
}

// HandleRuns lists stored runs, optionally filtered by task.
//
// URL format: GET /api/runs?task={task}
func (h *Handler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Run storage is not configured", http.StatusNotFound)
		return
	}
	runs, err := h.store.Runs(r.Context(), r.URL.Query().Get("task"))
	if err != nil {
		h.log.Error("Failed to list runs", "err", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView(run))
	}
	h.writeJSON(w, http.StatusOK, views)
}

// HandleRun returns a stored run with its instances.
//
// URL format: GET /api/runs/{id}
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Run storage is not configured", http.StatusNotFound)
		return
	}
	run, err := h.store.Run(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, storage.ErrRunNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("Failed to load run", "err", err)
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, runView(run))
}

// entry resolves the task of the request and returns the catalog version
// it was found in.
func (h *Handler) entry(w http.ResponseWriter, r *http.Request) (*catalog.Entry, uint64, bool) {
	task := chi.URLParam(r, "task")
	c, version := h.current()
	e, ok := c.Get(task)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown task %q", task), http.StatusNotFound)
	}
	return e, version, ok
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// cached writes the cached response of the request if there is one. It
// returns the key to store the response under, empty when the request is
// not cacheable. The key names the catalog version, so a response computed
// from a replaced catalog is never served.
func (h *Handler) cached(w http.ResponseWriter, r *http.Request, task, mode string, version uint64, save bool, request any) (string, bool) {
	if h.cache == nil || save {
		return "", false
	}
	data, err := json.Marshal(request)
	if err != nil {
		return "", false
	}
	key := featgen.CacheKey{Task: task, Mode: mode, Catalog: version, Request: string(data)}.String()
	body, err := h.cache.Get(r.Context(), key)
	if err != nil {
		h.log.Warn("Cache lookup failed", "key", key, "err", err)
		return key, false
	}
	if body == nil {
		return key, false
	}
	h.log.Debug("Serving cached response", "task", task, "mode", mode)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return key, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, task, mode string, save bool, key string, res *instance.Result) {
	resp := GenerateResponse{Task: task, Names: res.Ranked(), Instances: []InstanceView{}}
	for _, name := range resp.Names {
		inst, _ := res.Get(name)
		resp.Instances = append(resp.Instances, InstanceView{
			Name:        name,
			Fingerprint: instance.Fingerprint(inst),
			Tree:        inst.String(),
		})
	}
	if err := res.Err(); err != nil {
		h.log.Warn("Generation stopped early", "task", task, "mode", mode, "err", err)
		resp.Error = err.Error()
	}
	if save && h.store != nil {
		run, err := h.store.SaveRun(r.Context(), task, mode, res)
		if err != nil {
			h.log.Error("Failed to save run", "task", task, "err", err)
			http.Error(w, "Failed to save run", http.StatusInternalServerError)
			return
		}
		resp.Run = run.ID
	}
	if key != "" && resp.Error == "" {
		body, err := json.Marshal(resp)
		if err == nil {
			if err := h.cache.Set(r.Context(), key, append(body, '\n'), 0); err != nil {
				h.log.Warn("Failed to cache response", "key", key, "err", err)
			}
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", "err", err)
	}
}

func runView(run *storage.Run) RunView {
	v := RunView{ID: run.ID, Task: run.Task, Mode: run.Mode, Created: run.Created}
	for _, n := range run.Instances {
		v.Instances = append(v.Instances, InstanceView{
			Name:        n.Name,
			Fingerprint: n.Fingerprint,
			Tree:        n.Snapshot.String(),
		})
	}
	return v
}
