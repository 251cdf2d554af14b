package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
)

const requestIDHeader = "X-Request-ID"

// RAGController handles the HTTP requests for our RAG API. It depends on the
// services layer for all of the actual logic.
type RAGController struct {
	ragService services.RAGService
	store      *services.VectorStore
	embedder   *services.EmbeddingService
	indexer    *services.IndexingService
	dataDir    string
	topK       int
	logger     *slog.Logger
}

// NewRAGController creates a controller. dataDir is indexed when an index
// request names no directory; topK applies when a request omits top_k.
func NewRAGController(ragService services.RAGService, store *services.VectorStore, embedder *services.EmbeddingService, indexer *services.IndexingService, dataDir string, topK int) *RAGController {
	if topK <= 0 {
		topK = services.DefaultTopK
	}
	return &RAGController{
		ragService: ragService,
		store:      store,
		embedder:   embedder,
		indexer:    indexer,
		dataDir:    dataDir,
		topK:       topK,
		logger:     slog.Default().With("component", "http"),
	}
}

// NewRouter wires the controller into a gin engine with CORS and request-id
// middleware.
func NewRouter(c *RAGController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), c.requestLogger(), cors())

	router.GET("/health", c.Health)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/query", c.Query)
		apiV1.POST("/query/batch", c.BatchQuery)
		apiV1.POST("/search", c.Search)
		apiV1.POST("/index", c.Index)
		apiV1.DELETE("/index", c.ClearIndex)
		apiV1.DELETE("/documents", c.DeleteDocuments)
		apiV1.GET("/stats", c.Stats)
	}
	return router
}

// Health reports that the server is up.
func (c *RAGController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "RAG API",
		"version": "1.0.0",
	})
}

// Query is the Gin handler for POST /api/v1/query.
func (c *RAGController) Query(ctx *gin.Context) {
	var req models.QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	threshold := c.ragService.SimilarityThreshold()
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	result, err := c.ragService.Query(ctx.Request.Context(), req.Query, c.topKOr(req.TopK), threshold)
	if err != nil {
		c.fail(ctx, "query failed", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// BatchQuery is the Gin handler for POST /api/v1/query/batch.
func (c *RAGController) BatchQuery(ctx *gin.Context) {
	var req models.BatchQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	results, err := c.ragService.BatchQuery(ctx.Request.Context(), req.Queries, c.topKOr(req.TopK))
	if err != nil {
		c.fail(ctx, "batch query failed", err)
		return
	}
	ctx.JSON(http.StatusOK, models.BatchQueryResponse{
		Results:     results,
		Performance: c.ragService.Performance(results),
	})
}

// Search is the Gin handler for POST /api/v1/search. It returns the raw
// retrieval results without composing an answer.
func (c *RAGController) Search(ctx *gin.Context) {
	var req models.SearchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	vector, err := c.embedder.EmbedOne(ctx.Request.Context(), req.Query)
	if err != nil {
		c.fail(ctx, "search failed", err)
		return
	}
	results, err := c.store.Search(ctx.Request.Context(), vector, c.topKOr(req.TopK), req.Filter)
	if err != nil {
		c.fail(ctx, "search failed", err)
		return
	}
	ctx.JSON(http.StatusOK, models.SearchResponse{Query: req.Query, Count: len(results), Results: results})
}

// Index is the Gin handler for POST /api/v1/index.
func (c *RAGController) Index(ctx *gin.Context) {
	var req models.IndexRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}
	dir := req.Directory
	if dir == "" {
		dir = c.dataDir
	}

	report, err := c.indexer.IndexDirectory(ctx.Request.Context(), dir, req.Rebuild)
	if err != nil {
		c.fail(ctx, "indexing failed", err)
		return
	}
	ctx.JSON(http.StatusCreated, report)
}

// ClearIndex is the Gin handler for DELETE /api/v1/index.
func (c *RAGController) ClearIndex(ctx *gin.Context) {
	if err := c.store.Clear(ctx.Request.Context()); err != nil {
		c.fail(ctx, "clear failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Index cleared"})
}

// DeleteDocuments is the Gin handler for DELETE /api/v1/documents.
func (c *RAGController) DeleteDocuments(ctx *gin.Context) {
	var req models.DeleteDocumentsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	deleted, err := c.store.DeleteByFilter(ctx.Request.Context(), req.Filter)
	if err != nil {
		c.fail(ctx, "delete failed", err)
		return
	}
	ctx.JSON(http.StatusOK, models.DeleteResponse{Message: "Documents deleted", Deleted: deleted})
}

// Stats is the Gin handler for GET /api/v1/stats.
func (c *RAGController) Stats(ctx *gin.Context) {
	stats, err := c.store.Stats(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "stats failed", err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

func (c *RAGController) topKOr(topK int) int {
	if topK > 0 {
		return topK
	}
	return c.topK
}

func (c *RAGController) fail(ctx *gin.Context, msg string, err error) {
	status := statusFor(err)
	c.logger.Error(msg, "error", err, "status", status, "request_id", ctx.GetString(requestIDHeader))
	ctx.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps the services error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		mismatchErr  *services.DimensionMismatchError
		embeddingErr *services.EmbeddingError
		indexErr     *services.IndexUnavailableError
	)
	switch {
	case errors.Is(err, services.ErrInvalidFilter), errors.Is(err, services.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrDirectoryNotFound):
		return http.StatusNotFound
	case errors.As(err, &mismatchErr):
		return http.StatusBadRequest
	case errors.As(err, &embeddingErr):
		return http.StatusBadGateway
	case errors.As(err, &indexErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c *RAGController) requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		ctx.Set(requestIDHeader, id)
		ctx.Header(requestIDHeader, id)

		start := time.Now()
		ctx.Next()
		c.logger.Info("request",
			"method", ctx.Request.Method,
			"path", ctx.FullPath(),
			"status", ctx.Writer.Status(),
			"latency", time.Since(start),
			"request_id", id,
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
