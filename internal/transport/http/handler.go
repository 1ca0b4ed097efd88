package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"github.com/rs/zerolog"
)

// Handler exposes the core operations over REST. Error kinds map to status
// codes here; everything else about HTTP stays out of the core.
type Handler struct {
	service *app.Service
	log     zerolog.Logger
}

func NewHandler(service *app.Service, log zerolog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts every route on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/admin/quiz/{quizid}/session/start", h.startSession)
	mux.HandleFunc("GET /v1/admin/quiz/{quizid}/sessions", h.listSessions)
	mux.HandleFunc("GET /v1/admin/quiz/{quizid}/session/{sessionid}", h.sessionStatus)
	mux.HandleFunc("PUT /v1/admin/quiz/{quizid}/session/{sessionid}", h.updateSessionState)
	mux.HandleFunc("GET /v1/admin/quiz/{quizid}/session/{sessionid}/results", h.sessionResults)
	mux.HandleFunc("GET /v1/admin/quiz/{quizid}/session/{sessionid}/results/{position}", h.sessionQuestionResults)

	mux.HandleFunc("POST /v1/admin/quiz/{quizid}/question", h.createQuestion)
	mux.HandleFunc("PUT /v1/admin/quiz/{quizid}/question/{questionid}", h.updateQuestion)
	mux.HandleFunc("DELETE /v1/admin/quiz/{quizid}/question/{questionid}", h.deleteQuestion)
	mux.HandleFunc("PUT /v1/admin/quiz/{quizid}/question/{questionid}/move", h.moveQuestion)
	mux.HandleFunc("POST /v1/admin/quiz/{quizid}/question/{questionid}/duplicate", h.duplicateQuestion)

	mux.HandleFunc("POST /v1/player/join", h.playerJoin)
	mux.HandleFunc("GET /v1/player/{playerid}", h.playerStatus)
	mux.HandleFunc("GET /v1/player/{playerid}/question/{position}", h.playerQuestion)
	mux.HandleFunc("PUT /v1/player/{playerid}/question/{position}/answer", h.submitAnswer)
	mux.HandleFunc("GET /v1/player/{playerid}/question/{position}/results", h.questionResults)
	mux.HandleFunc("GET /v1/player/{playerid}/results", h.playerFinalResults)
	mux.HandleFunc("POST /v1/player/{playerid}/chat", h.chatSend)
	mux.HandleFunc("GET /v1/player/{playerid}/chat", h.chatView)

	mux.HandleFunc("DELETE /v1/clear", h.clear)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AutoStartNum int `json:"autoStartNum"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	sessionID, err := h.service.StartSession(r.Context(), token(r), r.PathValue("quizid"), body.AutoStartNum)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListSessions(r.Context(), token(r), r.PathValue("quizid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) sessionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.SessionStatus(r.Context(), token(r), r.PathValue("quizid"), r.PathValue("sessionid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) updateSessionState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	err := h.service.UpdateSessionState(r.Context(), token(r), r.PathValue("quizid"), r.PathValue("sessionid"), body.Action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) sessionResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.SessionResults(r.Context(), token(r), r.PathValue("quizid"), r.PathValue("sessionid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) sessionQuestionResults(w http.ResponseWriter, r *http.Request) {
	position, ok := h.position(w, r)
	if !ok {
		return
	}
	result, err := h.service.SessionQuestionResults(r.Context(), token(r), r.PathValue("quizid"), r.PathValue("sessionid"), position)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var body app.QuestionInput
	if !h.decode(w, r, &body) {
		return
	}
	questionID, err := h.service.CreateQuestion(r.Context(), token(r), r.PathValue("quizid"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"questionId": questionID})
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var body app.QuestionInput
	if !h.decode(w, r, &body) {
		return
	}
	err := h.service.UpdateQuestion(r.Context(), token(r), r.PathValue("quizid"), r.PathValue("questionid"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteQuestion(r.Context(), token(r), r.PathValue("quizid"), r.PathValue("questionid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) moveQuestion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewPosition int `json:"newPosition"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	err := h.service.MoveQuestion(r.Context(), token(r), r.PathValue("quizid"), r.PathValue("questionid"), body.NewPosition)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) duplicateQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, err := h.service.DuplicateQuestion(r.Context(), token(r), r.PathValue("quizid"), r.PathValue("questionid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"newQuestionId": questionID})
}

func (h *Handler) playerJoin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"sessionId"`
		Name      string `json:"name"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	playerID, err := h.service.PlayerJoin(body.SessionID, body.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"playerId": playerID})
}

func (h *Handler) playerStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.PlayerStatus(r.PathValue("playerid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) playerQuestion(w http.ResponseWriter, r *http.Request) {
	position, ok := h.position(w, r)
	if !ok {
		return
	}
	question, err := h.service.PlayerQuestion(r.PathValue("playerid"), position)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, question)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	position, ok := h.position(w, r)
	if !ok {
		return
	}
	var body struct {
		AnswerIDs []string `json:"answerIds"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.service.SubmitAnswer(r.PathValue("playerid"), position, body.AnswerIDs); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) questionResults(w http.ResponseWriter, r *http.Request) {
	position, ok := h.position(w, r)
	if !ok {
		return
	}
	results, err := h.service.QuestionResults(r.PathValue("playerid"), position)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) playerFinalResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.PlayerFinalResults(r.PathValue("playerid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) chatSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.service.ChatSend(r.PathValue("playerid"), body.Message); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) chatView(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.ChatView(r.PathValue("playerid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.service.Clear()
	h.writeJSON(w, http.StatusOK, struct{}{})
}

func token(r *http.Request) string {
	return r.Header.Get("token")
}

func (h *Handler) position(w http.ResponseWriter, r *http.Request) (int, bool) {
	position, err := strconv.Atoi(r.PathValue("position"))
	if err != nil {
		h.writeError(w, r, domain.Validationf("question position must be a number"))
		return 0, false
	}
	return position, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, domain.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	switch domain.KindOf(err) {
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	case domain.KindForbidden:
		status = http.StatusForbidden
	}
	h.log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
