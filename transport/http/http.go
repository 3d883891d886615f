// Package http implements the HTTP façade of spec §6.1 on gorilla/mux,
// grounded on the routing style shared by the retrieval pack's other
// services (gorilla/mux route tables with one handler method per route)
// and wired to goa.design/clue's health endpoint for the ambient
// liveness/readiness surface every deployed service in this corpus
// carries.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"goa.design/clue/health"
	"goa.design/clue/log"

	"github.com/resonantlabs/negotiator/agentregistry"
	"github.com/resonantlabs/negotiator/engine"
	"github.com/resonantlabs/negotiator/scene"
	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// Server wires the Engine, Store, Scene Registry and Agent Registry to
// the HTTP routes of spec §6.1.
type Server struct {
	Engine *engine.Engine
	Store  *session.Store
	Scenes *scene.Registry
	Agents *agentregistry.Registry
}

// NewRouter builds the full route table.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)
	r.HandleFunc("/api/negotiate", s.handleNegotiate).Methods(http.MethodPost)
	r.HandleFunc("/api/negotiate/{id}", s.handleGetNegotiation).Methods(http.MethodGet)
	r.HandleFunc("/api/negotiate/{id}/confirm", s.handleConfirm).Methods(http.MethodPost)
	r.HandleFunc("/api/agents", s.handleListAgents).Methods(http.MethodGet)
	r.HandleFunc("/api/scenes", s.handleListScenes).Methods(http.MethodGet)
	r.Handle("/healthz", health.Handler(health.NewChecker()))
	return r
}

// loggingMiddleware logs one line per request via goa.design/clue/log, the
// same logging package the teacher's HTTP entrypoints use throughout.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Print(r.Context(),
			log.KV{K: "method", V: r.Method},
			log.KV{K: "path", V: r.URL.Path},
			log.KV{K: "status", V: sw.status},
			log.KV{K: "duration", V: time.Since(start).String()},
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type negotiateRequest struct {
	RawIntent string `json:"raw_intent"`
	UserID    string `json:"user_id"`
	Scope     string `json:"scope"`
}

type negotiateResponse struct {
	NegotiationID string `json:"negotiation_id"`
}

func (s *Server) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	var req negotiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.RawIntent == "" {
		writeError(w, http.StatusBadRequest, toolerrors.NewConfigError("raw_intent is required", toolerrors.Context{}, nil))
		return
	}
	if req.Scope == "" {
		req.Scope = "all"
	}

	negotiationID := uuid.NewString()
	demand := session.Demand{RawIntent: req.RawIntent, UserID: req.UserID, Scope: req.Scope}
	sess, gate, err := s.Engine.StartNegotiation(negotiationID, demand)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		_ = s.Engine.Run(ctx, sess, gate)
	}()

	writeJSON(w, http.StatusAccepted, negotiateResponse{NegotiationID: negotiationID})
}

type enrichmentsView struct {
	HardConstraints       []string `json:"hard_constraints"`
	NegotiablePreferences []string `json:"negotiable_preferences"`
	ContextAdded          string   `json:"context_added"`
}

type negotiationView struct {
	NegotiationID     string          `json:"negotiation_id"`
	State             string          `json:"state"`
	FormulatedText    string          `json:"formulated_text"`
	Enrichments       enrichmentsView `json:"enrichments"`
	PlanOutput        string          `json:"plan_output,omitempty"`
	CoordinatorRounds int             `json:"coordinator_rounds"`
	Participants      []string        `json:"participants"`
}

func (s *Server) handleGetNegotiation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess := s.Store.Get(id)
	if sess == nil {
		writeError(w, http.StatusNotFound, toolerrors.NewEngineError("unknown negotiation", toolerrors.Context{NegotiationID: id}, nil))
		return
	}
	ids := make([]string, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		ids = append(ids, p.AgentID)
	}
	writeJSON(w, http.StatusOK, negotiationView{
		NegotiationID:  sess.NegotiationID,
		State:          string(sess.State),
		FormulatedText: sess.Demand.FormulatedText,
		Enrichments: enrichmentsView{
			HardConstraints:       sess.Demand.Enrichments.HardConstraints,
			NegotiablePreferences: sess.Demand.Enrichments.NegotiablePreferences,
			ContextAdded:          sess.Demand.Enrichments.ContextAdded,
		},
		PlanOutput:        sess.PlanOutput,
		CoordinatorRounds: sess.CoordinatorRounds,
		Participants:      ids,
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Engine.Confirm(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type agentView struct {
	AgentID     string `json:"agent_id"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	scopeParam := r.URL.Query().Get("scope")
	if scopeParam == "" {
		scopeParam = "all"
	}
	ids, err := s.Scenes.ResolveScope(scopeParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ids = s.Agents.InScope(ids)
	out := make([]agentView, 0, len(ids))
	for _, id := range ids {
		out = append(out, agentView{AgentID: id, DisplayName: s.Agents.DisplayName(id)})
	}
	writeJSON(w, http.StatusOK, out)
}

type sceneView struct {
	SceneID  string   `json:"scene_id"`
	Name     string   `json:"name"`
	AgentIDs []string `json:"agent_ids"`
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	scenes := s.Scenes.All()
	out := make([]sceneView, 0, len(scenes))
	for _, sc := range scenes {
		out = append(out, sceneView{SceneID: sc.ID, Name: sc.Name, AgentIDs: sc.AgentIDs})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
