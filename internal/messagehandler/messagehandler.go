package messagehandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/OliverSchlueter/goutils/problems"
	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smteepee/internal/messages"
)

type Handler struct {
	store *messages.Store
}

func New(store *messages.Store) *Handler {
	return &Handler{
		store: store,
	}
}

func (h *Handler) Register(prefix string, mux *http.ServeMux) {
	mux.HandleFunc(prefix+"/messages", h.handleMessages)
	mux.HandleFunc(prefix+"/messages/{id}", h.handleMessage)
	mux.HandleFunc(prefix+"/messages/{id}/raw", h.handleRawMessage)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getMessages(w, r)
	default:
		problems.MethodNotAllowed(r.Method, []string{http.MethodGet}).WriteToHTTP(w)
	}
}

func (h *Handler) getMessages(w http.ResponseWriter, r *http.Request) {
	ms, err := h.store.List(r.Context())
	if err != nil {
		slog.Error("Failed to list messages", sloki.WrapError(err))
		problems.InternalServerError(err.Error()).WriteToHTTP(w)
		return
	}

	data, err := json.Marshal(ms)
	if err != nil {
		problems.InternalServerError("Error marshalling messages").WriteToHTTP(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		h.getMessage(w, r, id)
	default:
		problems.MethodNotAllowed(r.Method, []string{http.MethodGet}).WriteToHTTP(w)
	}
}

func (h *Handler) getMessage(w http.ResponseWriter, r *http.Request, id string) {
	m, ok := h.lookup(w, r, id)
	if !ok {
		return
	}

	data, err := json.Marshal(m)
	if err != nil {
		problems.InternalServerError("Error marshalling message").WriteToHTTP(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) handleRawMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		h.getRawMessage(w, r, id)
	default:
		problems.MethodNotAllowed(r.Method, []string{http.MethodGet}).WriteToHTTP(w)
	}
}

func (h *Handler) getRawMessage(w http.ResponseWriter, r *http.Request, id string) {
	m, ok := h.lookup(w, r, id)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "message/rfc822")
	w.WriteHeader(http.StatusOK)
	w.Write(m.Body())
}

// lookup writes the error response itself and reports whether m is usable.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, id string) (*messages.Message, bool) {
	if id == "" {
		problems.ValidationError("id", "Message ID must not be empty").WriteToHTTP(w)
		return nil, false
	}

	m, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, messages.ErrMessageNotFound) {
			http.Error(w, "message not found", http.StatusNotFound)
			return nil, false
		}
		slog.Error("Failed to get message", sloki.WrapError(err), "id", id)
		problems.InternalServerError(err.Error()).WriteToHTTP(w)
		return nil, false
	}
	return m, true
}
