package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// ConfigAPI provides HTTP endpoints to view and modify configuration
type ConfigAPI struct {
	cfg    *Config
	mu     sync.RWMutex
	router *mux.Router
	load   func() (*Config, error)
}

func NewConfigAPI(cfg *Config) *ConfigAPI {
	api := &ConfigAPI{
		cfg:    cfg,
		router: mux.NewRouter(),
		load:   Load,
	}
	api.routes()
	return api
}

func (api *ConfigAPI) Router() *mux.Router {
	return api.router
}

func (api *ConfigAPI) routes() {
	api.router.HandleFunc("/configure", api.getConfig).Methods("GET")
	api.router.HandleFunc("/configure/", api.getConfig).Methods("GET")
	api.router.HandleFunc("/configure", api.updateConfig).Methods("POST")
	api.router.HandleFunc("/configure/reload", api.reloadConfig).Methods("POST")
	api.router.HandleFunc("/configure/validate", api.validateConfig).Methods("POST")
	api.router.HandleFunc("/configure/sections/{section}", api.getSection).Methods("GET")
}

func (api *ConfigAPI) getConfig(w http.ResponseWriter, r *http.Request) {
	api.mu.RLock()
	defer api.mu.RUnlock()
	writeJSON(w, api.safeConfigCopy())
}

// updateConfig replaces the live configuration. Components already built from the
// previous configuration keep their settings until restart.
func (api *ConfigAPI) updateConfig(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()
	var newCfg Config
	if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
		http.Error(w, fmt.Sprintf("invalid config payload: %v", err), http.StatusBadRequest)
		return
	}
	if err := newCfg.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid configuration: %v", err), http.StatusBadRequest)
		return
	}
	*api.cfg = newCfg
	writeJSON(w, api.safeConfigCopy())
}

func (api *ConfigAPI) reloadConfig(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()
	reloadedCfg, err := api.load()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to reload config: %v", err), http.StatusInternalServerError)
		return
	}
	*api.cfg = *reloadedCfg
	writeJSON(w, api.safeConfigCopy())
}

func (api *ConfigAPI) validateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("invalid config payload: %v", err), http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid configuration: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"valid": true, "message": "configuration is valid"})
}

func (api *ConfigAPI) getSection(w http.ResponseWriter, r *http.Request) {
	api.mu.RLock()
	defer api.mu.RUnlock()

	safe := api.safeConfigCopy()
	var section interface{}
	switch mux.Vars(r)["section"] {
	case "server":
		section = safe.Review.Server
	case "log":
		section = safe.Review.Log
	case "llm":
		section = safe.Review.LLM
	case "pipeline":
		section = safe.Review.Pipeline
	case "storage":
		section = safe.Review.Storage
	default:
		http.Error(w, fmt.Sprintf("unknown section: %s", mux.Vars(r)["section"]), http.StatusNotFound)
		return
	}
	writeJSON(w, section)
}

func (api *ConfigAPI) safeConfigCopy() *Config {
	copyCfg := *api.cfg
	copyCfg.Review.Server.CORSOrigins = append([]string(nil), api.cfg.Review.Server.CORSOrigins...)
	if copyCfg.Review.LLM.APIKey != "" {
		copyCfg.Review.LLM.APIKey = "***"
	}
	return &copyCfg
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
