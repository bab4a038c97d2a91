package flowtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Flowkit/internal/domain"
)

// AgentOutcome — чем завершится агент образа.
type AgentOutcome struct {
	// Status — финальный статус. Пустой — stopped.
	Status domain.AgentStatus
	Logs   string
}

// AgentAPI — фейковый API агентов оркестратора.
//
// Запущенный агент завершается при первом GET /agents/{id}:
// DeployedAgent.Wait возвращается сразу.
type AgentAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	outcomes map[string]AgentOutcome
	agents   map[string]*domain.Agent
	order    []string
}

// NewAgentAPI запускает фейковый API. Закрывается через Close.
func NewAgentAPI() *AgentAPI {
	a := &AgentAPI{
		outcomes: make(map[string]AgentOutcome),
		agents:   make(map[string]*domain.Agent),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /agents", a.deploy)
	mux.HandleFunc("POST /agents/{id}/start", a.transition(domain.AgentStatusRunning))
	mux.HandleFunc("POST /agents/{id}/stop", a.transition(domain.AgentStatusStopped))
	mux.HandleFunc("GET /agents/{id}", a.get)
	mux.HandleFunc("GET /agents/{id}/logs", a.logs)
	a.server = httptest.NewServer(mux)
	return a
}

// URL возвращает адрес API.
func (a *AgentAPI) URL() string { return a.server.URL }

func (a *AgentAPI) Close() { a.server.Close() }

// Configure задаёт исход для агентов образа image.
func (a *AgentAPI) Configure(image string, outcome AgentOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[image] = outcome
}

// Deployed возвращает развёрнутых агентов в порядке создания.
func (a *AgentAPI) Deployed() []domain.Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Agent, len(a.order))
	for i, id := range a.order {
		out[i] = *a.agents[id]
	}
	return out
}

func (a *AgentAPI) deploy(w http.ResponseWriter, r *http.Request) {
	var req domain.DeployAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Image == "" {
		writeError(w, http.StatusBadRequest, "name and image are required")
		return
	}

	now := time.Now().UTC()
	agent := &domain.Agent{
		ID:          "mock-" + req.Name + "-" + uuid.NewString()[:8],
		Name:        req.Name,
		Image:       req.Image,
		Status:      domain.AgentStatusCreated,
		EnvVars:     req.EnvVars,
		CPULimit:    req.CPULimit,
		MemoryLimit: req.MemoryLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	a.mu.Lock()
	a.agents[agent.ID] = agent
	a.order = append(a.order, agent.ID)
	snapshot := *agent
	a.mu.Unlock()

	writeData(w, http.StatusCreated, snapshot)
}

func (a *AgentAPI) transition(to domain.AgentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()

		agent, ok := a.agents[r.PathValue("id")]
		if !ok {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		if !agent.Status.IsFinished() {
			agent.Status = to
			agent.UpdatedAt = time.Now().UTC()
		}
		writeData(w, http.StatusOK, map[string]string{"status": string(agent.Status)})
	}
}

func (a *AgentAPI) get(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	agent, ok := a.agents[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if agent.Status == domain.AgentStatusRunning {
		final := a.outcomes[agent.Image].Status
		if final == "" {
			final = domain.AgentStatusStopped
		}
		agent.Status = final
		agent.UpdatedAt = time.Now().UTC()
	}
	writeData(w, http.StatusOK, *agent)
}

func (a *AgentAPI) logs(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	agent, ok := a.agents[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeData(w, http.StatusOK, a.outcomes[agent.Image].Logs)
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
