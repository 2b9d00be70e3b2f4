package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/antonkh/filings-qa/internal/core/domain"
	"github.com/antonkh/filings-qa/internal/core/ports"
	"github.com/antonkh/filings-qa/internal/observability/metrics"
)

// Router exposes the question-answering pipeline over HTTP.
type Router struct {
	service     string
	questionSvc ports.QuestionService
	metrics     *metrics.HTTPServerMetrics
}

func NewRouter(service string, questionSvc ports.QuestionService, m *metrics.HTTPServerMetrics) *Router {
	return &Router{
		service:     service,
		questionSvc: questionSvc,
		metrics:     m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/questions/answer", rt.answerQuestion)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequest struct {
	Question string `json:"question"`
	Kind     string `json:"kind"`
}

type answerResponse struct {
	Question   string             `json:"question"`
	Kind       string             `json:"kind"`
	Value      any                `json:"value"`
	References []domain.Reference `json:"references"`
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	kind, err := domain.ParseQuestionKind(req.Kind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	start := time.Now()
	result, err := rt.questionSvc.Answer(r.Context(), req.Question, kind)
	rt.recordQuestion(kind, err, time.Since(start), result)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Question:   req.Question,
		Kind:       string(kind),
		Value:      result.Value,
		References: result.References,
	})
}

func (rt *Router) recordQuestion(kind domain.QuestionKind, err error, duration time.Duration, result domain.RouterResult) {
	if rt.metrics == nil {
		return
	}
	route := "single"
	if kind == domain.KindComparative {
		route = "comparative"
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	rt.metrics.RecordQuestion(rt.service, string(kind), route, status, duration)
	if err == nil {
		rt.metrics.RecordReferences(rt.service, string(kind), len(result.References))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
