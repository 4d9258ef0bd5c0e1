package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/services"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SessionHandler struct {
	BaseHandler
	manager   *services.SessionManager
	validator *utils.Validator
	ops       *services.ServiceLogger
	// runWait bounds how long a run request with ?wait=true blocks.
	runWait time.Duration
}

func NewSessionHandler(
	manager *services.SessionManager,
	validator *utils.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		manager:     manager,
		validator:   validator,
		ops: services.NewServiceLogger(utils.ToSlogLogger(logger), services.LogConfig{
			Service:   "attempt-engine",
			Component: "session_handler",
		}),
		runWait: 30 * time.Second,
	}
}

// bind decodes and validates a JSON body, writing the 400 itself.
func (h *SessionHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleServiceError(c, err)
		return false
	}
	return true
}

// session resolves :id for the authenticated student.
func (h *SessionHandler) session(c *gin.Context, op *services.ContextualLogger) (*services.Session, bool) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return nil, false
	}
	session, err := h.manager.Get(sessionID, c.GetString(studentIDKey))
	if err != nil {
		op.LogResult(sessionID, err)
		h.handleServiceError(c, err)
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) operation(c *gin.Context, name string) *services.ContextualLogger {
	ctx := services.WithRequestID(c.Request.Context(), c.GetHeader("X-Request-ID"))
	return h.ops.WithOperation(ctx, name, c.GetString(studentIDKey))
}

// StartSession starts or resumes the student's session for an assessment
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if !h.bind(c, &req) {
		return
	}
	op := h.operation(c, "start_session")
	h.LogRequest(c, "Starting session", "assessment_id", req.AssessmentID)

	session, err := h.manager.StartSession(c.Request.Context(), c.GetString(studentIDKey), req.AssessmentID)
	if err != nil {
		op.LogResult("", err)
		h.handleServiceError(c, err)
		return
	}
	op.LogResult(session.ID, nil)

	c.JSON(http.StatusCreated, session.Snapshot())
}

// GetSession returns the state snapshot
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	op := h.operation(c, "get_session")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// GetQuestion returns one question without its canonical answer
// @Router /sessions/{id}/questions/{question} [get]
func (h *SessionHandler) GetQuestion(c *gin.Context) {
	op := h.operation(c, "get_question")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	index, ok := ParseIndexParam(c, "question")
	if !ok {
		return
	}

	question, err := session.Question(index)
	if err != nil {
		op.LogResult(session.ID, err)
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

// Navigate moves the current question pointer
// @Router /sessions/{id}/navigate [post]
func (h *SessionHandler) Navigate(c *gin.Context) {
	op := h.operation(c, "navigate")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	var req NavigateRequest
	if !h.bind(c, &req) {
		return
	}

	var (
		index int
		err   error
	)
	switch {
	case req.Index != nil:
		index, err = session.Jump(*req.Index)
	case req.Direction == "next":
		index, err = session.Next()
	case req.Direction == "prev":
		index, err = session.Prev()
	default:
		err = services.NewValidationError("direction", "direction or index is required", req.Direction)
	}
	if err != nil {
		op.LogResult(session.ID, err)
		h.handleServiceError(c, err)
		return
	}

	question, err := session.Question(index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

// SetAnswer records the answer to a non-blank question
// @Router /sessions/{id}/answers/{question_id} [put]
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	op := h.operation(c, "set_answer")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}
	var req AnswerRequest
	if !h.bind(c, &req) {
		return
	}

	var value models.AnswerValue
	switch {
	case req.Selection != nil:
		value = models.SelectionAnswer(req.Selection...)
	case req.Text != nil:
		value = models.TextAnswer(*req.Text)
	default:
		h.handleServiceError(c, services.NewValidationError("answer", "text or selection is required", nil))
		return
	}

	if err := session.SetAnswer(questionID, value); err != nil {
		op.LogResult(session.ID, err)
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetBlank records one blank of a fill-in-blanks question
// @Router /sessions/{id}/answers/{question_id}/blanks/{blank} [put]
func (h *SessionHandler) SetBlank(c *gin.Context) {
	op := h.operation(c, "set_blank")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}
	blank, ok := ParseIndexParam(c, "blank")
	if !ok {
		return
	}
	var req BlankRequest
	if !h.bind(c, &req) {
		return
	}

	if err := session.SetBlank(questionID, blank, req.Text); err != nil {
		op.LogResult(session.ID, err)
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearAnswer removes a question's answer including all its blanks
// @Router /sessions/{id}/answers/{question_id} [delete]
func (h *SessionHandler) ClearAnswer(c *gin.Context) {
	op := h.operation(c, "clear_answer")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	if err := session.ClearAnswer(questionID); err != nil {
		op.LogResult(session.ID, err)
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RunCode sends a coding answer to the sandbox. The run is asynchronous
// unless ?wait=true, in which case the response carries the result.
// @Router /sessions/{id}/questions/{question}/run [post]
func (h *SessionHandler) RunCode(c *gin.Context) {
	op := h.operation(c, "run_code")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	questionID := ParseStringIDParam(c, "question")
	if questionID == "" {
		return
	}
	var req RunCodeRequest
	if !h.bind(c, &req) {
		return
	}

	results, err := session.RunCode(c.Request.Context(), questionID, req.Source, req.Stdin)
	op.LogResult(session.ID, err)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, gin.H{"question_id": questionID, "running": true})
		return
	}

	timeout := time.NewTimer(h.runWait)
	defer timeout.Stop()
	select {
	case result := <-results:
		c.JSON(http.StatusOK, result)
	case <-timeout.C:
		c.JSON(http.StatusAccepted, gin.H{"question_id": questionID, "running": true})
	case <-c.Request.Context().Done():
	}
}

// GetResult returns the latest run of a coding question
// @Router /sessions/{id}/questions/{question}/result [get]
func (h *SessionHandler) GetResult(c *gin.Context) {
	op := h.operation(c, "get_result")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	questionID := ParseStringIDParam(c, "question")
	if questionID == "" {
		return
	}

	result, running := session.Result(questionID)
	if result == nil && !running {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "No result for question " + questionID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": running, "result": result})
}

// SubmitPreview lists unanswered questions before a manual submit
// @Router /sessions/{id}/submit-preview [get]
func (h *SessionHandler) SubmitPreview(c *gin.Context) {
	op := h.operation(c, "submit_preview")
	session, ok := h.session(c, op)
	if !ok {
		return
	}

	preview, err := session.Preview()
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Submit finishes the session. The body must confirm the submission.
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	op := h.operation(c, "submit")
	session, ok := h.session(c, op)
	if !ok {
		return
	}
	var req SubmitRequest
	if !h.bind(c, &req) {
		return
	}

	outcome, err := session.Submit(c.Request.Context(), req.Confirmed)
	op.LogResult(session.ID, err)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// ExportReview downloads the manual-review workbook of a finished session
// @Router /sessions/{id}/review.xlsx [get]
func (h *SessionHandler) ExportReview(c *gin.Context) {
	op := h.operation(c, "export_review")
	session, ok := h.session(c, op)
	if !ok {
		return
	}

	data, err := services.ExportReview(session)
	op.LogResult(session.ID, err)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="review-%s.xlsx"`, session.ID))
	c.Data(http.StatusOK, xlsxContentType, data)
}
