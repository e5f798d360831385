package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericksa/contractlens/internal/app"
	"github.com/ericksa/contractlens/internal/config"
	"github.com/ericksa/contractlens/internal/extract"
	"github.com/ericksa/contractlens/internal/middleware"
	"github.com/ericksa/contractlens/internal/model"
	"github.com/ericksa/contractlens/internal/review"
	"github.com/ericksa/contractlens/internal/workers"
)

const defaultMaxUploadMB = 20

type api struct {
	app       *app.App
	maxUpload int64
}

func newRouter(a *app.App) http.Handler {
	h := &api{app: a, maxUpload: int64(a.Config.Review.Server.MaxUploadMB) << 20}
	if h.maxUpload <= 0 {
		h.maxUpload = defaultMaxUploadMB << 20
	}

	router := mux.NewRouter()
	middleware.Register(router, a.Log)

	// MCP endpoint
	router.PathPrefix("/mcp").Handler(a.MCP)

	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Review API
	r := router.PathPrefix("/api").Subrouter()
	r.HandleFunc("/documents", h.upload).Methods("POST")
	r.HandleFunc("/documents/{id}/clauses", h.clauses).Methods("GET")
	r.HandleFunc("/documents/{id}/summary", h.summary).Methods("GET")
	r.HandleFunc("/documents/{id}/extract/{kind}", h.extract).Methods("POST")
	r.HandleFunc("/clauses/{id}", h.markReviewed).Methods("PATCH")
	r.HandleFunc("/reset", h.reset).Methods("POST")
	r.HandleFunc("/rules", h.listRules).Methods("GET")
	r.HandleFunc("/rules", h.createRule).Methods("POST")
	r.HandleFunc("/rules/{id}", h.updateRule).Methods("PUT")
	r.HandleFunc("/rules/{id}", h.deleteRule).Methods("DELETE")
	r.HandleFunc("/audit", h.auditLogs).Methods("GET")

	// Tools endpoints
	router.HandleFunc("/tools", h.listTools).Methods("GET")
	router.HandleFunc("/tools/{worker}/{tool}", h.executeTool).Methods("POST")

	// Configuration API
	router.PathPrefix("/configure").Handler(config.NewConfigAPI(a.Config).Router())

	return middleware.CORS(a.Config.Review.Server.CORSOrigins)(router)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *api) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", h.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("multipart field \"file\" is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.app.Review.Upload(r.Context(), model.Document{
		ID:       r.FormValue("document_id"),
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *api) clauses(w http.ResponseWriter, r *http.Request) {
	clauses, err := h.app.Review.Clauses(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, clauses)
}

func (h *api) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.app.Review.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *api) extract(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := vars["kind"]
	if kind != review.KindFees && kind != review.KindCosts && kind != review.KindPaymentTerms {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown extraction %q", kind))
		return
	}
	res, err := h.app.Review.Extract(r.Context(), vars["id"], kind)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *api) markReviewed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Completed *bool `json:"completed"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	c, err := h.app.Review.MarkReviewed(r.Context(), mux.Vars(r)["id"], completed)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *api) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Review.Reset(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func (h *api) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.app.Review.ListRules(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *api) createRule(w http.ResponseWriter, r *http.Request) {
	var rule model.ComplianceRule
	if err := decodeBody(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Review.CreateRule(r.Context(), rule)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *api) updateRule(w http.ResponseWriter, r *http.Request) {
	var rule model.ComplianceRule
	if err := decodeBody(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Review.UpdateRule(r.Context(), mux.Vars(r)["id"], rule)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *api) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Review.DeleteRule(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *api) auditLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.app.Audit.GetLogs(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *api) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.app.MCP.Tools()})
}

func (h *api) executeTool(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var args map[string]any
	if err := decodeBody(r, &args); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.MCP.Execute(r.Context(), vars["worker"], vars["tool"], argsJSON)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, review.ErrNotFound), errors.Is(err, workers.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, review.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, extract.ErrExtraction), errors.Is(err, extract.ErrNoText), errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeBody decodes a JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid JSON body: %w", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
