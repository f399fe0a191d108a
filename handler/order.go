package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/orderledger/middleware"
	"github.com/AnTengye/orderledger/pkg/apperr"
	"github.com/AnTengye/orderledger/pkg/logger"
	"github.com/AnTengye/orderledger/service"
)

// MaxImageSize bounds uploaded screenshots.
const MaxImageSize = 10 << 20

type OrderHandler struct {
	pipeline *service.Pipeline
	backup   *service.BackupService
}

// NewOrderHandler wires the order routes. backup may be nil when object
// storage is disabled.
func NewOrderHandler(pipeline *service.Pipeline, backup *service.BackupService) *OrderHandler {
	return &OrderHandler{pipeline: pipeline, backup: backup}
}

type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

type ExtractionRequest struct {
	Fields  json.RawMessage `json:"fields" binding:"required"`
	Caption string          `json:"caption"`
}

// SubmitText handles pasted chat text.
func (h *OrderHandler) SubmitText(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := logger.WithSource(c.Request.Context(), "text")
	respond(c, h.pipeline.SubmitText(ctx, req.Text))
}

// SubmitImage handles a multipart screenshot upload with an optional
// caption field.
func (h *OrderHandler) SubmitImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}
	defer file.Close()

	if header.Size > MaxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	if len(data) > MaxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only image files are allowed"})
		return
	}

	ctx := logger.WithSource(c.Request.Context(), "image")
	logger.Debug(ctx, "screenshot received", "filename", filepath.Base(header.Filename), "size", len(data), "mime", mimeType)
	respond(c, h.pipeline.SubmitImage(ctx, data, mimeType, c.PostForm("caption")))
}

// SubmitExtraction continues an image submission from fields extracted
// elsewhere.
func (h *OrderHandler) SubmitExtraction(c *gin.Context) {
	var req ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	bag, err := service.ParseFieldBag(string(req.Fields))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fields must be a JSON object"})
		return
	}

	ctx := logger.WithSource(c.Request.Context(), "extraction")
	respond(c, h.pipeline.SubmitImageExtraction(ctx, bag, req.Caption))
}

// SubmitManual handles Key=Value order entry.
func (h *OrderHandler) SubmitManual(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := logger.WithSource(c.Request.Context(), "manual")
	respond(c, h.pipeline.SubmitManual(ctx, req.Text))
}

func (h *OrderHandler) Search(c *gin.Context) {
	respond(c, h.pipeline.Search(c.Request.Context(), c.Query("q")))
}

func (h *OrderHandler) Stock(c *gin.Context) {
	respond(c, h.pipeline.Stock(c.Request.Context()))
}

func (h *OrderHandler) Stats(c *gin.Context) {
	respond(c, h.pipeline.Stats(c.Request.Context()))
}

// Export streams the orders ledger as a CSV attachment, or with ?link=1
// returns a presigned download link from object storage.
func (h *OrderHandler) Export(c *gin.Context) {
	if c.Query("link") != "" {
		h.exportLink(c)
		return
	}

	resp := h.pipeline.Export(c.Request.Context())
	if resp.Err != nil {
		respond(c, resp)
		return
	}

	name := filepath.Base(h.pipeline.Store().OrdersPath())
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", resp.File)
}

func (h *OrderHandler) exportLink(c *gin.Context) {
	if h.backup == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Object storage is not configured"})
		return
	}

	url, err := h.backup.ExportURL(c.Request.Context())
	if errors.Is(err, service.ErrNoOrders) {
		respondError(c, apperr.NotFoundErr("📊 Файл заказов пуст"))
		return
	}
	if err != nil {
		respondError(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Backup copies the ledgers to object storage.
func (h *OrderHandler) Backup(c *gin.Context) {
	if h.backup == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Object storage is not configured"})
		return
	}

	objects, err := h.backup.Backup(c.Request.Context())
	if err != nil {
		respondError(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"objects": objects})
}

// respond writes a pipeline response. Failures keep the operator text and
// any partially built order in the body.
func respond(c *gin.Context, resp *service.Response) {
	if resp.Order != nil && resp.Saved {
		middleware.NoteOrder(c, resp.Order.ID)
	}
	if resp.Err == nil {
		status := http.StatusOK
		if resp.Saved {
			status = http.StatusCreated
		}
		c.JSON(status, resp)
		return
	}

	c.Error(resp.Err)
	c.JSON(apperr.HTTPStatus(resp.Err), gin.H{
		"error":    apperr.PublicMessage(resp.Err),
		"text":     resp.Text,
		"order":    resp.Order,
		"accepted": resp.Accepted,
		"saved":    resp.Saved,
	})
}

func respondError(c *gin.Context, err error) {
	c.Error(err)
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.PublicMessage(err)})
}
