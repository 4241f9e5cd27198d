package handler

import (
	"log/slog"
	"net/http"

	"llmarena/internal/domain"
	llmModels "llmarena/internal/domain/models/llm"
	llmSvc "llmarena/internal/domain/services/llm"
	"llmarena/internal/handler/sse"
	"llmarena/internal/httputil"
	"llmarena/internal/observability"
)

// legacyStreamMessage is returned by the retired single-request stream endpoint
const legacyStreamMessage = "POST /api/debate/stream has been retired. Call POST /api/debate/stream/init, then open GET /api/debate/stream/{taskId}/{modelKey}/{sessionId}."

// DebateHandler serves debate sessions and the two-step turn stream
type DebateHandler struct {
	streaming llmSvc.StreamingService
	debate    llmSvc.DebateService
	sseConfig sse.Config
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewDebateHandler creates a new debate handler
func NewDebateHandler(
	streaming llmSvc.StreamingService,
	debate llmSvc.DebateService,
	sseConfig sse.Config,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *DebateHandler {
	return &DebateHandler{
		streaming: streaming,
		debate:    debate,
		sseConfig: sseConfig,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateSession starts a new debate
// POST /api/debate/session
func (h *DebateHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req llmSvc.CreateDebateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	session, err := h.debate.CreateSession(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, session)
}

// GetSession returns a debate with its ordered turn history
// GET /api/debate/session/{id}
func (h *DebateHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.debate.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, session)
}

// InitStream validates a turn and returns the key triple for its stream
// POST /api/debate/stream/init
func (h *DebateHandler) InitStream(w http.ResponseWriter, r *http.Request) {
	var req llmSvc.StreamInitRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	resp, err := h.streaming.Init(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// Stream claims the key triple and relays the turn over SSE.
// The claim is consumed before any header is written, so a reused or expired
// triple still gets a plain 404.
// GET /api/debate/stream/{taskId}/{modelKey}/{sessionId}
func (h *DebateHandler) Stream(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	modelKey := r.PathValue("modelKey")
	sessionID := r.PathValue("sessionId")

	params, err := h.streaming.Claim(r.Context(), taskID, modelKey, sessionID)
	if err != nil {
		h.logger.Info("stream claim rejected",
			"task_id", taskID,
			"model_key", modelKey,
			"session_id", sessionID,
			"error", err,
		)
		handleError(w, r, h.logger, err)
		return
	}

	session, err := sse.NewSession(r.Context(), w, llmModels.StreamMeta{
		TaskID:    params.TaskID,
		ModelKey:  params.ModelKey,
		SessionID: params.SessionID,
	}, h.sseConfig, h.metrics, h.logger)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	defer session.Close()

	h.streaming.Run(r.Context(), params, session)
}

// LegacyStream always answers 410 Gone
// POST /api/debate/stream
func (h *DebateHandler) LegacyStream(w http.ResponseWriter, r *http.Request) {
	httputil.RespondError(w, &domain.GoneError{Message: legacyStreamMessage})
}
