// Package api exposes the research request lifecycle over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rosescout/rosescout/orchestrate"
	"github.com/rosescout/rosescout/orchestrate/extract"
	"github.com/rosescout/rosescout/orchestrate/prompt"
)

// Server routes HTTP traffic to the scheduler and ledger.
type Server struct {
	router    *chi.Mux
	logger    *zap.Logger
	ledger    *orchestrate.Ledger
	table     *orchestrate.Table
	scheduler *orchestrate.Scheduler

	defaultModel  string
	defaultPrompt string
}

// Options configures a Server beyond its core dependencies.
type Options struct {
	DefaultModel  string
	DefaultPrompt string
}

// NewServer wires the HTTP surface. All dependencies are required.
func NewServer(logger *zap.Logger, ledger *orchestrate.Ledger, table *orchestrate.Table, scheduler *orchestrate.Scheduler, opts Options) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger.Named("api"),
		ledger:        ledger,
		table:         table,
		scheduler:     scheduler,
		defaultModel:  opts.DefaultModel,
		defaultPrompt: opts.DefaultPrompt,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/capabilities", s.listCapabilities)
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", s.submitRequest)
			r.Get("/", s.listRequests)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getRequest)
				r.Get("/report", s.getReport)
			})
		})
	})
}

// ServeHTTP lets the Server act as a standard http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type submitBody struct {
	Model          string                  `json:"model"`
	PromptName     string                  `json:"prompt_name"`
	PromptVersion  int                     `json:"prompt_version"`
	PromptTemplate string                  `json:"prompt_template"`
	Parameters     []orchestrate.Parameter `json:"parameters"`
	Capabilities   []string                `json:"capabilities"`
}

type submitResponse struct {
	ID string `json:"id"`
}

func (s *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	model := body.Model
	if model == "" {
		model = s.defaultModel
	}
	promptName := body.PromptName
	if promptName == "" && body.PromptTemplate == "" {
		promptName = s.defaultPrompt
	}

	id, err := s.scheduler.Submit(r.Context(), orchestrate.Submission{
		Model: model,
		Prompt: orchestrate.PromptSource{
			Name:    promptName,
			Version: body.PromptVersion,
			Literal: body.PromptTemplate,
		},
		Parameters:   body.Parameters,
		Capabilities: body.Capabilities,
	})
	if err != nil {
		if errors.Is(err, prompt.ErrNotFound) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, submitResponse{ID: id})
}

type requestView struct {
	ID           string                  `json:"id"`
	State        string                  `json:"state"`
	CreatedAt    time.Time               `json:"created_at"`
	Parameters   []orchestrate.Parameter `json:"parameters"`
	Capabilities []string                `json:"capabilities,omitempty"`
	Output       string                  `json:"output,omitempty"`
	Failure      string                  `json:"failure,omitempty"`
	Sources      []orchestrate.Source    `json:"sources,omitempty"`
	Usage        *orchestrate.Usage      `json:"usage,omitempty"`
}

func viewOf(req orchestrate.Request) requestView {
	return requestView{
		ID:           req.ID,
		State:        string(req.State),
		CreatedAt:    req.CreatedAt,
		Parameters:   req.Parameters,
		Capabilities: req.Capabilities,
		Output:       req.Output,
		Failure:      req.Failure,
		Sources:      req.Sources,
		Usage:        req.Usage,
	}
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	requests := s.ledger.List()
	views := make([]requestView, 0, len(requests))
	for _, req := range requests {
		views = append(views, viewOf(req))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"requests": views})
}

// pathID returns the {id} segment decoded. chi hands back the segment as
// it appeared on the wire, which for non-ASCII ledger keys means
// percent-escaped bytes.
func pathID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(id); err == nil {
		return decoded
	}
	return id
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := s.ledger.Get(pathID(r))
	if !ok {
		s.writeError(w, http.StatusNotFound, "request not found")
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(req))
}

type reportView struct {
	ID         string               `json:"id"`
	State      string               `json:"state"`
	Raw        string               `json:"raw,omitempty"`
	Failure    string               `json:"failure,omitempty"`
	Data       map[string]any       `json:"data,omitempty"`
	Table      map[string]any       `json:"table,omitempty"`
	References []referenceView      `json:"references,omitempty"`
	Sources    []orchestrate.Source `json:"sources,omitempty"`
}

type referenceView struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// getReport post-processes a completed request's output: the embedded JSON
// document with reference fields stripped and nesting capped, plus the
// extracted references and grounding sources. The raw text is always
// returned so nothing is lost when extraction fails.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.ledger.Get(pathID(r))
	if !ok {
		s.writeError(w, http.StatusNotFound, "request not found")
		return
	}

	report := reportView{
		ID:      req.ID,
		State:   string(req.State),
		Raw:     req.Output,
		Failure: req.Failure,
		Sources: req.Sources,
	}

	if req.State == orchestrate.StateCompleted {
		if _, raw, ok := extract.JSONFromText(req.Output); ok {
			references := extract.References(raw)
			for _, ref := range references {
				report.References = append(report.References, referenceView{
					Path:  ref.Path,
					Value: ref.Value,
				})
			}
			cleaned := extract.Strip(raw, references)
			var doc map[string]any
			if err := json.Unmarshal([]byte(cleaned), &doc); err == nil {
				report.Data = extract.LimitDepth(doc)
				report.Table = extract.Flatten(doc)
			}
		}
	}

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) listCapabilities(w http.ResponseWriter, r *http.Request) {
	defs := s.table.Definitions()
	type capabilityView struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	views := make([]capabilityView, 0, len(defs))
	for _, def := range defs {
		views = append(views, capabilityView{Name: def.Name, Description: def.Description})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"capabilities": views})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
