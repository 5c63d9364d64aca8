package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfchat/internal/app"
	"pdfchat/internal/domain"
	"pdfchat/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

// RAG is the orchestrator surface the handlers drive.
type RAG interface {
	ProcessDocuments(ctx context.Context, docs []domain.Document) (*app.IngestResult, error)
	AnswerQuestion(ctx context.Context, question string) (*domain.Answer, error)
	IndexInfo(ctx context.Context) (domain.IndexInfo, bool, error)
	State() domain.IndexState
}

type RAGHandler struct {
	rag RAG
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type SourceResponse struct {
	Order int     `json:"order"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

type AnswerResponse struct {
	Status  domain.AnswerStatus `json:"status"`
	Answer  string              `json:"answer"`
	Sources []SourceResponse    `json:"sources"`
	Cached  bool                `json:"cached"`
}

type IndexResponse struct {
	State string            `json:"state"`
	Index *domain.IndexInfo `json:"index,omitempty"`
}

func NewRAGHandler(rag RAG) *RAGHandler {
	return &RAGHandler{rag: rag}
}

// ProcessDocuments accepts a multipart form with one or more "files" (PDF)
// and rebuilds the index from them.
func (h *RAGHandler) ProcessDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing files")
		return
	}

	docs := make([]domain.Document, 0, len(files))
	for _, file := range files {
		if file.Size > maxPDFSize {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
				fmt.Sprintf("%s: file too large (max 10MB)", file.Filename))
			return
		}
		if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
				fmt.Sprintf("%s: only PDF files are allowed", file.Filename))
			return
		}

		f, err := file.Open()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxPDFSize))
		f.Close()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
			return
		}
		docs = append(docs, domain.Document{Name: file.Filename, Data: data})
	}

	result, err := h.rag.ProcessDocuments(c.Request.Context(), docs)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *RAGHandler) AnswerQuestion(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	ans, err := h.rag.AnswerQuestion(c.Request.Context(), req.Question)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := AnswerResponse{
		Status:  ans.Status,
		Answer:  ans.Text,
		Sources: make([]SourceResponse, 0, len(ans.Sources)),
		Cached:  ans.Cached,
	}
	for _, s := range ans.Sources {
		resp.Sources = append(resp.Sources, SourceResponse{Order: s.Order, Score: s.Score, Text: s.Text})
	}
	response.OK(c, resp)
}

func (h *RAGHandler) IndexStatus(c *gin.Context) {
	info, ok, err := h.rag.IndexInfo(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := IndexResponse{State: h.rag.State().String()}
	if ok {
		resp.Index = &info
	}
	response.OK(c, resp)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmptyDocument):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyDocument, "no extractable text in the uploaded documents")
	case errors.Is(err, domain.ErrNotReady):
		response.Error(c, http.StatusConflict, response.CodeNotReady, "no documents have been processed yet")
	case errors.Is(err, domain.ErrIncompatibleIndex), errors.Is(err, domain.ErrDimensionMismatch):
		response.Error(c, http.StatusConflict, response.CodeIndexMismatch, "index was built with a different embedding model, process the documents again")
	case errors.Is(err, domain.ErrRateLimited):
		response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, "generation rate limited, try again later")
	case errors.Is(err, domain.ErrModelUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeModelUnavailable, "generation model unavailable")
	case errors.Is(err, domain.ErrGeneration):
		response.Error(c, http.StatusBadGateway, response.CodeGenerationFailed, "generation failed")
	case errors.Is(err, domain.ErrPersistence):
		response.Error(c, http.StatusInternalServerError, response.CodePersistence, "index could not be saved")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "internal error")
	}
}
