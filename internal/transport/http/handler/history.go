package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pdfchat/internal/model"
	"pdfchat/internal/transport/http/response"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type BuildLister interface {
	List(indexName string, limit int) ([]model.IndexBuild, error)
}

type QARecordLister interface {
	ListRecent(limit int) ([]model.QARecord, error)
}

// HistoryHandler serves the build ledger and question journal. It is only
// routed when the ledger database is enabled.
type HistoryHandler struct {
	indexName string
	builds    BuildLister
	questions QARecordLister
}

func NewHistoryHandler(indexName string, builds BuildLister, questions QARecordLister) *HistoryHandler {
	return &HistoryHandler{indexName: indexName, builds: builds, questions: questions}
}

func (h *HistoryHandler) ListBuilds(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	list, err := h.builds.List(h.indexName, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list index builds failed")
		return
	}
	response.OK(c, list)
}

func (h *HistoryHandler) ListQuestions(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	list, err := h.questions.ListRecent(limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list questions failed")
		return
	}
	response.OK(c, list)
}

func parseLimit(c *gin.Context) (int, bool) {
	s := c.Query("limit")
	if s == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
		return 0, false
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, true
}
