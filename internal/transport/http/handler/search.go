package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finrag/internal/answer"
	"finrag/internal/app"
	"finrag/internal/transport/http/response"
)

type SearchHandler struct {
	search *app.SearchService
	dev    bool
}

func NewSearchHandler(search *app.SearchService, dev bool) *SearchHandler {
	return &SearchHandler{search: search, dev: dev}
}

type SearchRequest struct {
	Query         string `json:"query"`
	Mode          string `json:"mode"`
	Limit         int    `json:"limit"`
	IncludeAnswer *bool  `json:"includeAnswer"`
}

type SearchSource struct {
	ChunkID       string  `json:"chunkId"`
	DocumentID    string  `json:"documentId"`
	DocumentTitle string  `json:"documentTitle"`
	ChunkIndex    int     `json:"chunkIndex"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	SearchType    string  `json:"searchType"`
}

type SearchResponse struct {
	Answer         *string           `json:"answer,omitempty"`
	AnswerFallback *bool             `json:"answerFallback,omitempty"`
	AnswerModel    string            `json:"answerModel,omitempty"`
	Citations      []answer.Citation `json:"citations,omitempty"`
	Sources        []SearchSource    `json:"sources"`
	SearchType     string            `json:"searchType"`
	ModeUsed       string            `json:"modeUsed"`
	ResultsCount   int               `json:"resultsCount"`
	ResponseTimeMs int64             `json:"responseTimeMs"`
	Degraded       bool              `json:"degraded"`
	DegradedReason string            `json:"degradedReason,omitempty"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "body must be a JSON object with a query")
		return
	}

	out, err := h.search.Search(c.Request.Context(), app.SearchInput{
		Query:         req.Query,
		Mode:          req.Mode,
		Limit:         req.Limit,
		IncludeAnswer: req.IncludeAnswer,
	})
	if err != nil {
		writeError(c, err, h.dev)
		return
	}

	resp := SearchResponse{
		Sources:        make([]SearchSource, len(out.Sources)),
		SearchType:     string(out.SearchType),
		ModeUsed:       string(out.ModeUsed),
		ResultsCount:   out.ResultsCount,
		ResponseTimeMs: out.ResponseTimeMs,
		Degraded:       out.Degraded,
		DegradedReason: out.DegradedReason,
	}
	for i, s := range out.Sources {
		resp.Sources[i] = SearchSource{
			ChunkID:       s.ChunkID,
			DocumentID:    s.DocumentID,
			DocumentTitle: s.DocumentTitle,
			ChunkIndex:    s.ChunkIndex,
			Content:       s.Content,
			Score:         s.Score,
			SearchType:    string(s.Mode),
		}
	}
	if a := out.Answer; a != nil {
		resp.Answer = &a.Text
		resp.AnswerFallback = &a.Fallback
		resp.AnswerModel = a.Model
		resp.Citations = a.Citations
	}
	response.OK(c, resp)
}
