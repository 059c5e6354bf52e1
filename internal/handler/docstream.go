package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/service"
)

const statusPollInterval = 2 * time.Second

// DocStreamHandler handles WebSocket connections for document status updates.
// Clients connect while an upload is extracting and receive a message on each
// status change until the document reaches a terminal state.
type DocStreamHandler struct {
	documents      *service.DocumentService
	logger         *slog.Logger
	allowedOrigins []string
}

// NewDocStreamHandler creates a new document stream handler
func NewDocStreamHandler(documents *service.DocumentService, logger *slog.Logger, allowedOrigins []string) *DocStreamHandler {
	return &DocStreamHandler{
		documents:      documents,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *DocStreamHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow requests with no origin (e.g., non-browser clients)
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// statusUpdate is a single message on the stream
type statusUpdate struct {
	DocumentID string            `json:"documentId"`
	Status     string            `json:"status"`
	Fields     map[string]string `json:"fields,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ServeHTTP handles WebSocket requests for document status.
// Path format: /ws/documents/{id}?token=...
func (h *DocStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing auth")
		return
	}

	docID := r.PathValue("id")
	if docID == "" {
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) >= 4 {
			docID = parts[3]
		}
	}
	if docID == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	// Tenant scoping happens before the upgrade so a foreign document looks
	// like a plain 404
	doc, err := h.documents.Get(r.Context(), actor, docID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	ctx := r.Context()
	lastStatus := ""
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		if doc.Status != lastStatus {
			lastStatus = doc.Status
			update := statusUpdate{
				DocumentID: doc.ID,
				Status:     string(doc.Status),
				Fields:     doc.Fields,
				Error:      doc.Error,
			}
			if err := ws.WriteJSON(update); err != nil {
				h.logger.Debug("document stream closed by client",
					slog.String("document_id", docID),
					slog.String("reason", err.Error()),
				)
				return
			}
		}

		if doc.Status == domain.DocumentExtracted || doc.Status == domain.DocumentFailed {
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		doc, err = h.documents.Get(ctx, actor, docID)
		if err != nil {
			h.logger.Warn("document vanished during stream",
				slog.String("document_id", docID),
				slog.String("error", err.Error()),
			)
			ws.WriteMessage(websocket.TextMessage, []byte("Error: document not found"))
			return
		}
	}
}
