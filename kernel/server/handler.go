package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/openziti/storelab/kernel/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultAuditLimit = 50

type Handler struct {
	backend *Backend
}

func NewHandler(backend *Backend) *Handler {
	return &Handler{backend: backend}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/stores", h.ListStores).Methods("GET")
	api.HandleFunc("/stores", h.CreateStore).Methods("POST")
	api.HandleFunc("/stores/{id}", h.GetStore).Methods("GET")
	api.HandleFunc("/stores/{id}", h.DeleteStore).Methods("DELETE")
	api.HandleFunc("/stores/{id}/admin-credentials", h.GetAdminCredentials).Methods("GET")
	api.HandleFunc("/audit-events", h.ListAuditEvents).Methods("GET")
}

func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.backend.ListStores()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

func (h *Handler) CreateStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string          `json:"name"`
		Type model.StoreType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, reject(http.StatusUnprocessableEntity, "invalid request body"))
		return
	}
	st, err := h.backend.CreateStore(req.Name, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (h *Handler) GetStore(w http.ResponseWriter, r *http.Request) {
	st, err := h.backend.GetStore(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteStore(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetAdminCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.backend.GetAdminCredentials(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, reject(http.StatusUnprocessableEntity, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	events, err := h.backend.ListAuditEvents(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("unable to write response")
	}
}

// writeError answers in the orchestrator's error envelope. Validation
// failures use the list form, everything else a plain detail string.
func writeError(w http.ResponseWriter, err error) {
	var re *requestError
	if !errors.As(err, &re) {
		logrus.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "Internal Server Error"})
		return
	}
	if re.status == http.StatusUnprocessableEntity {
		writeJSON(w, re.status, map[string]any{"detail": []map[string]string{{"msg": re.detail}}})
		return
	}
	writeJSON(w, re.status, map[string]any{"detail": re.detail})
}
