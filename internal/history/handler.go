package history

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/httputil"
)

// Handler exposes the message event hook.
type Handler struct {
	recorder EventRecorder
}

// NewHandler creates the hook handler.
func NewHandler(recorder EventRecorder) *Handler {
	return &Handler{recorder: recorder}
}

// Routes mounts under /hooks.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message-events", h.HandleMessageEvent)
	return r
}

type hookResponse struct {
	Success  bool `json:"success"`
	Recorded bool `json:"recorded"`
}

// HandleMessageEvent records one event and answers 202.
func (h *Handler) HandleMessageEvent(w http.ResponseWriter, r *http.Request) {
	var evt domain.MessageEvent
	if !httputil.Decode(w, r, &evt) {
		return
	}

	recorded, err := h.recorder.Record(r.Context(), evt)
	switch {
	case err == nil:
		httputil.Accepted(w, hookResponse{Success: true, Recorded: recorded})
	case errors.Is(err, domain.ErrTenantNotFound):
		httputil.NotFound(w, err.Error())
	case permanent(err):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
