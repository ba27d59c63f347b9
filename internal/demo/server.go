// Package demo is a self-contained implementation of the interview service
// contract. It grades answers with local heuristics and never calls a model
// provider, which makes it suitable for offline practice and integration
// tests.
package demo

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/intervai-dev/intervai/internal/config"
)

// defaultModels is the model used when a start request names none.
var defaultModels = map[string]string{
	"openai":      "gpt-3.5-turbo",
	"anthropic":   "claude-3-opus-20240229",
	"google":      "gemini-pro",
	"perplexity":  "sonar-pro",
	"grok":        "grok-4",
	"together_ai": "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
}

type qaPair struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	Score         int    `json:"score"`
	Verdict       string `json:"verdict"`
	Feedback      string `json:"feedback"`
	CorrectAnswer string `json:"correct_answer"`
}

type weakArea struct {
	Question        string `json:"question"`
	ImprovementTips string `json:"improvement_tips"`
}

type demoSession struct {
	provider   string
	domain     string
	model      string
	difficulty string
	asked      int
	current    string
	qaPairs    []qaPair
	weakAreas  map[string][]weakArea
}

// Server holds in-memory sessions.
type Server struct {
	mu       sync.Mutex
	sessions map[string]*demoSession
}

// NewServer creates an empty Server.
func NewServer() *Server {
	return &Server{sessions: make(map[string]*demoSession)}
}

// Routes returns the HTTP handler for the service.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Head("/", s.Health)
	r.Get("/", s.Health)
	r.Get("/healthz", s.Health)

	r.Route("/interview", func(r chi.Router) {
		r.Post("/start", s.Start)
		r.Post("/question", s.Question)
		r.Post("/answer", s.Answer)
		r.Post("/followup", s.Followup)
		r.Post("/end", s.End)
		r.Post("/transcribe", s.Transcribe)
		r.Post("/restore", s.Restore)
	})
	return r
}

// Health answers liveness probes.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start handles POST /interview/start.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	provider := r.FormValue("provider")
	apiKey := r.FormValue("api_key")
	domain := strings.TrimSpace(r.FormValue("domain"))

	if apiKey == "" {
		respondError(w, http.StatusBadRequest, "API key cannot be empty")
		return
	}
	if !slices.Contains(config.Providers, provider) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid API provider: %s", provider))
		return
	}
	if inferred := inferProvider(apiKey); inferred != "unknown" && inferred != provider {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("The provided API key appears to be for '%s', but provider '%s' was selected. "+
			"Please select the correct provider or use a matching key.", inferred, provider))
		return
	}
	if domain == "" {
		respondError(w, http.StatusUnprocessableEntity, "domain is required")
		return
	}

	model := strings.TrimSpace(r.FormValue("model"))
	if model == "" {
		model = defaultModels[provider]
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = &demoSession{
		provider:   provider,
		domain:     domain,
		model:      model,
		difficulty: r.FormValue("difficulty"),
		weakAreas:  make(map[string][]weakArea),
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{
		"message":    "Interview session started",
		"session_id": id,
		"provider":   provider,
		"domain":     domain,
		"model":      model,
	})
}

// Question handles POST /interview/question.
func (s *Server) Question(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id string, sess *demoSession) {
		q := pickQuestion(id, sess.domain, sess.asked)
		sess.asked++
		sess.current = q
		respondJSON(w, http.StatusOK, map[string]string{"question": q})
	})
}

// Followup handles POST /interview/followup.
func (s *Server) Followup(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(_ string, sess *demoSession) {
		var last, verdict string
		if n := len(sess.qaPairs); n > 0 {
			last, verdict = sess.qaPairs[n-1].Question, sess.qaPairs[n-1].Verdict
		}
		q := followupFor(last, verdict)
		sess.asked++
		sess.current = q
		respondJSON(w, http.StatusOK, map[string]string{"question": q})
	})
}

// Answer handles POST /interview/answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(_ string, sess *demoSession) {
		answer := strings.TrimSpace(r.FormValue("answer"))
		question := sess.current
		ev := evaluate(question, answer, sess.domain)
		if question == "" {
			question = "the previous question"
		}

		sess.qaPairs = append(sess.qaPairs, qaPair{
			Question:      question,
			UserAnswer:    answer,
			Score:         ev.Score,
			Verdict:       ev.Verdict,
			Feedback:      ev.Feedback,
			CorrectAnswer: ev.CorrectAnswer,
		})
		if ev.Score < 75 {
			topic := sess.domain
			if topic == "" {
				topic = "General"
			}
			sess.weakAreas[topic] = append(sess.weakAreas[topic], weakArea{
				Question:        question,
				ImprovementTips: "Study core concepts; practice with real examples; focus on clarity and completeness.",
			})
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"score":          ev.Score,
			"verdict":        ev.Verdict,
			"feedback":       ev.Feedback,
			"correct_answer": ev.CorrectAnswer,
		})
	})
}

// End handles POST /interview/end. The session is removed.
func (s *Server) End(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	id := r.FormValue("session_id")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, "Session not found or already ended")
		return
	}

	overall := 0.0
	if n := len(sess.qaPairs); n > 0 {
		total := 0
		for _, p := range sess.qaPairs {
			total += p.Score
		}
		overall = math.Round(float64(total)/float64(n)*10) / 10
	}

	var weak any = []any{}
	if len(sess.weakAreas) > 0 {
		weak = sess.weakAreas
	}
	pairs := sess.qaPairs
	if pairs == nil {
		pairs = []qaPair{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"summary": map[string]any{
		"overall_score": overall,
		"weak_areas":    weak,
		"qa_pairs":      pairs,
		"subject":       sess.domain,
	}})
}

// Transcribe handles POST /interview/transcribe. It reports the size of the
// upload in place of real speech recognition.
func (s *Server) Transcribe(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer f.Close()

	n, err := io.Copy(io.Discard, f)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": fmt.Sprintf("[Transcribed %d bytes of audio]", n)})
}

// Restore handles POST /interview/restore.
func (s *Server) Restore(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id string, sess *demoSession) {
		respondJSON(w, http.StatusOK, map[string]string{
			"session_id": id,
			"provider":   sess.provider,
			"domain":     sess.domain,
			"model":      sess.model,
		})
	})
}

// withSession parses the form and runs fn with the session locked.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(id string, sess *demoSession)) {
	if !parseForm(w, r) {
		return
	}
	id := r.FormValue("session_id")
	if id == "" {
		respondError(w, http.StatusUnprocessableEntity, "session_id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	fn(id, sess)
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(10 << 20); err != nil && err != http.ErrNotMultipart {
		respondError(w, http.StatusBadRequest, "invalid form body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
