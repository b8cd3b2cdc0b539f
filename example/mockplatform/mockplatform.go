// Package mockplatform serves a fake compute platform for local runs: the
// four landing/deploy endpoints landingboard polls and a password-grant
// token endpoint.
//
// Node states and job statuses drift every few seconds so the snapshot
// visibly changes while landingboard is running.
package mockplatform

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	// Username and Password are the only credentials the token endpoint accepts.
	Username = "demo"
	Password = "demo"

	// ClientID and ClientSecret identify the demo OIDC client.
	ClientID     = "landingboard"
	ClientSecret = "demo-secret"

	// Token is the bearer token issued for valid credentials.
	Token = "mock-platform-token"
)

var nodeStates = []string{"ready", "busy", "draining", "offline"}

type node struct {
	ID    string `json:"id"`
	State string `json:"state"`
	CPU   int    `json:"cpu"`
	GPU   int    `json:"gpu"`
}

type job struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Platform holds the drifting fake state.
type Platform struct {
	mu           sync.Mutex
	nodes        []node
	jobs         []job
	deployments  int
	nextChangeAt time.Time
	rnd          *rand.Rand
	logger       *slog.Logger
}

// New creates a platform with a handful of nodes and jobs.
func New(logger *slog.Logger) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Platform{
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
	for i := 0; i < 4; i++ {
		p.nodes = append(p.nodes, node{
			ID:    uuid.NewString(),
			State: nodeStates[0],
			CPU:   64,
			GPU:   8,
		})
	}
	for i := 0; i < 3; i++ {
		p.addJob()
	}
	p.nextChangeAt = time.Now().Add(p.changeDelay())
	return p
}

// Handler returns the platform's HTTP routes.
func (p *Platform) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/landing/v2/status", p.handleStatus)
	r.Get("/landing/v2/capacities", p.handleCapacities)
	r.Get("/landing/v2/stats", p.handleStats)
	r.With(requireBearer).Get("/deploy/v1/jobs", p.handleJobs)
	r.Post("/token", handleToken)
	return r
}

func (p *Platform) handleStatus(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.drift()
	resp := map[string]any{"nodes": append([]node(nil), p.nodes...)}
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (p *Platform) handleCapacities(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.drift()
	var cpu, gpu, freeCPU, freeGPU int
	for _, n := range p.nodes {
		cpu += n.CPU
		gpu += n.GPU
		if n.State == "ready" {
			freeCPU += n.CPU
			freeGPU += n.GPU
		}
	}
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, []map[string]int{{
		"cpu": cpu, "gpu": gpu, "freeCpu": freeCPU, "freeGpu": freeGPU,
	}})
}

func (p *Platform) handleStats(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.drift()
	resp := map[string]int{"deployments": p.deployments, "nodes": len(p.nodes)}
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (p *Platform) handleJobs(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.drift()
	items := make([]job, 0, len(p.jobs))
	for i := len(p.jobs) - 1; i >= 0 && len(items) < 10; i-- {
		items = append(items, p.jobs[i])
	}
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// drift changes one node and starts one job once the scheduled time is
// reached. Callers hold p.mu.
func (p *Platform) drift() {
	if time.Now().Before(p.nextChangeAt) {
		return
	}
	n := &p.nodes[p.rnd.Intn(len(p.nodes))]
	old := n.State
	n.State = nodeStates[p.rnd.Intn(len(nodeStates))]
	p.addJob()
	p.nextChangeAt = time.Now().Add(p.changeDelay())
	p.logger.Info("platform drift", "node", n.ID, "from", old, "to", n.State, "deployments", p.deployments)
}

func (p *Platform) addJob() {
	p.deployments++
	p.jobs = append(p.jobs, job{
		ID:        uuid.NewString(),
		Name:      "deployment-" + uuid.NewString()[:8],
		Status:    "running",
		CreatedAt: time.Now().UTC(),
	})
}

// changeDelay returns 2-6 seconds.
func (p *Platform) changeDelay() time.Duration {
	return time.Duration(2+p.rnd.Intn(5)) * time.Second
}

func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	f := r.PostForm
	if f.Get("grant_type") != "password" ||
		f.Get("client_id") != ClientID || f.Get("client_secret") != ClientSecret ||
		f.Get("username") != Username || f.Get("password") != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": Token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
