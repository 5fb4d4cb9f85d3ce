package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/metrics"
	"github.com/pcidesk/chat-presence/pkg/response"
)

// LinkLister exposes the current presence links.
type LinkLister interface {
	AllLinks() []domain.PresenceLink
}

type HTTPHandler struct {
	links      LinkLister
	instanceID string
}

func NewHTTPHandler(links LinkLister, instanceID string) *HTTPHandler {
	return &HTTPHandler{links: links, instanceID: instanceID}
}

type linksResponse struct {
	InstanceID string                `json:"instance_id"`
	Count      int                   `json:"count"`
	Links      []domain.PresenceLink `json:"links"`
}

func (h *HTTPHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links := h.links.AllLinks()
	response.Success(w, linksResponse{
		InstanceID: h.instanceID,
		Count:      len(links),
		Links:      links,
	})
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *HTTPHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/presence/links", h.ListLinks).Methods(http.MethodGet)
}
