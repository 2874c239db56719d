package mirror

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const accountIDContextKey = "pawpaw_account_id"

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingRepository     = errors.New("mirror repository dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator resolves a bearer token to the account it was issued for.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// RecordRepository is the storage the HTTP handler serves from.
type RecordRepository interface {
	List(ctx context.Context, accountID string) ([]activities.Record, error)
	Upsert(ctx context.Context, accountID string, record activities.Record) error
	Delete(ctx context.Context, accountID, recordID string) (bool, error)
	DeleteAll(ctx context.Context, accountID string) (int64, error)
}

// Dependencies wires the mirror HTTP handler.
type Dependencies struct {
	Tokens         TokenValidator
	Repository     RecordRepository
	Logger         *zap.Logger
	AllowedOrigins []string
	Metrics        *Metrics
}

type errorResponsePayload struct {
	Error string `json:"error"`
}

// NewHTTPHandler builds the gin engine serving the mirror API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Repository == nil {
		return nil, errMissingRepository
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.Tokens,
		repository: deps.Repository,
		logger:     logger,
		metrics:    metrics,
	}
	router.Use(handler.observeRequest)

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	protected := router.Group("/v1")
	protected.Use(handler.authorizeRequest)
	protected.GET("/records", handler.handleList)
	protected.PUT("/records/:id", handler.handlePut)
	protected.DELETE("/records/:id", handler.handleDelete)
	protected.DELETE("/records", handler.handleDeleteAll)

	return router, nil
}

type httpHandler struct {
	tokens     TokenValidator
	repository RecordRepository
	logger     *zap.Logger
	metrics    *Metrics
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleList(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	records, err := h.repository.List(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to list mirrored records", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponsePayload{Error: "list_failed"})
		return
	}
	response := listResponsePayload{Records: make([]recordPayload, 0, len(records))}
	for _, record := range records {
		response.Records = append(response.Records, newRecordPayload(record))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handlePut(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	recordID := strings.TrimSpace(c.Param("id"))

	var request recordPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorResponsePayload{Error: "invalid_request"})
		return
	}
	request.ID = strings.TrimSpace(request.ID)
	if request.ID == "" {
		request.ID = recordID
	}
	if recordID == "" || request.ID != recordID {
		c.JSON(http.StatusBadRequest, errorResponsePayload{Error: "id_mismatch"})
		return
	}
	if request.StartTime.IsZero() || request.EndTime.IsZero() {
		c.JSON(http.StatusBadRequest, errorResponsePayload{Error: "invalid_time_range"})
		return
	}

	record := request.record()
	if err := h.repository.Upsert(c.Request.Context(), accountID, record); err != nil {
		h.logger.Error("failed to store mirrored record",
			zap.String("account_id", accountID),
			zap.String("record_id", recordID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponsePayload{Error: "store_failed"})
		return
	}
	h.metrics.observeStored()
	c.JSON(http.StatusOK, newRecordPayload(record))
}

func (h *httpHandler) handleDelete(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	recordID := strings.TrimSpace(c.Param("id"))
	found, err := h.repository.Delete(c.Request.Context(), accountID, recordID)
	if err != nil {
		h.logger.Error("failed to delete mirrored record",
			zap.String("account_id", accountID),
			zap.String("record_id", recordID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponsePayload{Error: "delete_failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, errorResponsePayload{Error: "not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteAll(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	removed, err := h.repository.DeleteAll(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to purge mirrored records", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponsePayload{Error: "purge_failed"})
		return
	}
	h.metrics.observePurge(removed)
	h.logger.Info("mirrored records purged", zap.String("account_id", accountID), zap.Int64("removed", removed))
	c.JSON(http.StatusOK, purgeResponsePayload{Removed: removed})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponsePayload{Error: errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponsePayload{Error: errInvalidAuthorization.Error()})
		return
	}
	accountID, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponsePayload{Error: "unauthorized"})
		return
	}
	c.Set(accountIDContextKey, accountID)
	c.Next()
}

func (h *httpHandler) observeRequest(c *gin.Context) {
	c.Next()
	h.metrics.observeRequest(c.FullPath(), c.Request.Method, c.Writer.Status())
}
