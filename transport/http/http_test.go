package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/agentregistry"
	"github.com/resonantlabs/negotiator/scene"
	"github.com/resonantlabs/negotiator/session"
	transporthttp "github.com/resonantlabs/negotiator/transport/http"
)

func newTestServer() (*transporthttp.Server, *session.Store, *scene.Registry, *agentregistry.Registry) {
	store := session.NewStore()
	scenes := scene.NewRegistry()
	agents := agentregistry.NewRegistry()
	return &transporthttp.Server{Store: store, Scenes: scenes, Agents: agents}, store, scenes, agents
}

func TestHandleGetNegotiation_UnknownIDIs404(t *testing.T) {
	srv, _, _, _ := newTestServer()
	router := transporthttp.NewRouter(srv)

	req := httptest.NewRequest("GET", "/api/negotiate/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestHandleGetNegotiation_ReturnsSessionView(t *testing.T) {
	srv, store, _, _ := newTestServer()
	router := transporthttp.NewRouter(srv)

	sess := session.New("nego-1", session.Demand{RawIntent: "ship it"}, 6)
	sess.Participants = []*session.Participant{{AgentID: "agent-a"}}
	_, err := store.Create(sess)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/negotiate/nego-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "nego-1", body["negotiation_id"])
	assert.Equal(t, []any{"agent-a"}, body["participants"])
}

func TestHandleListScenes_ReturnsRegisteredScenes(t *testing.T) {
	srv, _, scenes, _ := newTestServer()
	scenes.Put(&scene.Scene{ID: "s1", Name: "Design Team", AgentIDs: []string{"agent-a"}})
	router := transporthttp.NewRouter(srv)

	req := httptest.NewRequest("GET", "/api/scenes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "s1", body[0]["scene_id"])
}

func TestHandleListAgents_FiltersByScope(t *testing.T) {
	srv, _, scenes, agents := newTestServer()
	scenes.Put(&scene.Scene{ID: "s1", Name: "Design Team", AgentIDs: []string{"agent-a", "agent-b"}})
	agents.Put(&agentregistry.Agent{AgentID: "agent-a", DisplayName: "Alice"})
	router := transporthttp.NewRouter(srv)

	req := httptest.NewRequest("GET", "/api/agents?scope=scene:s1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1, "agent-b has no registry entry so InScope drops it")
	assert.Equal(t, "agent-a", body[0]["agent_id"])
}

func TestHandleListAgents_UnknownScopeIsBadRequest(t *testing.T) {
	srv, _, _, _ := newTestServer()
	router := transporthttp.NewRouter(srv)

	req := httptest.NewRequest("GET", "/api/agents?scope=nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHealthz_Returns200(t *testing.T) {
	srv, _, _, _ := newTestServer()
	router := transporthttp.NewRouter(srv)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}
