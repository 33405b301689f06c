package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gopherai-study/internal/app"
	"gopherai-study/internal/model"
	"gopherai-study/internal/pkg/pdfextract"
	"gopherai-study/internal/pkg/textchunk"
	"gopherai-study/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

type DocumentOutlines interface {
	Ingest(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
	IngestBatch(ctx context.Context, inputs []app.IngestInput) []app.BatchItem
	DeleteDocument(ctx context.Context, sessionID, filename string) (bool, error)
	GetDocumentOutline(ctx context.Context, sessionID, filename string) (*app.DocumentOutlineResult, error)
	GetSessionOutline(ctx context.Context, sessionID string) ([]model.UnifiedSection, error)
}

// JobPublisher queues documents for the ingestion worker.
type JobPublisher interface {
	Publish(ctx context.Context, job model.IngestJob) error
}

type DocumentHandler struct {
	outlines     DocumentOutlines
	publisher    JobPublisher
	extract      func(io.Reader) ([]pdfextract.Page, error)
	chunkSize    int
	chunkOverlap int
}

// NewDocumentHandler builds the handler; publisher may be nil when
// asynchronous ingestion is disabled.
func NewDocumentHandler(outlines DocumentOutlines, publisher JobPublisher, chunkSize, chunkOverlap int) *DocumentHandler {
	return &DocumentHandler{
		outlines:     outlines,
		publisher:    publisher,
		extract:      pdfextract.ExtractPages,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Upload accepts a multipart form with one or more "file" parts (PDF). With
// async=true the extracted chunks are queued instead of ingested inline.
// In a multi-file upload a file that cannot be read is reported in its own
// item and the rest are still ingested.
func (h *DocumentHandler) Upload(c *gin.Context) {
	sessionID := c.Param("session_id")
	form, err := c.MultipartForm()
	if err != nil || len(form.File["file"]) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	async, _ := strconv.ParseBool(c.PostForm("async"))
	if async && h.publisher == nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "asynchronous ingestion is not enabled")
		return
	}

	userID := getUserIDFromContext(c)
	files := form.File["file"]
	items := make([]app.BatchItem, len(files))
	inputs := make([]app.IngestInput, 0, len(files))
	slots := make([]int, 0, len(files))
	for i, file := range files {
		items[i].Filename = file.Filename
		in, err := h.prepare(sessionID, userID, file)
		if err != nil {
			if len(files) == 1 {
				writeServiceError(c, err, "ingest failed")
				return
			}
			items[i].Err = err
			items[i].Error = err.Error()
			continue
		}
		inputs = append(inputs, in)
		slots = append(slots, i)
	}

	if async {
		queued := make([]string, 0, len(inputs))
		for _, in := range inputs {
			job := model.IngestJob{
				SessionID:   in.SessionID,
				Filename:    in.Filename,
				ContentType: in.ContentType,
				UserID:      in.UserID,
				Chunks:      in.Chunks,
			}
			if err := h.publisher.Publish(c.Request.Context(), job); err != nil {
				writeServiceError(c, err, "queue document failed")
				return
			}
			queued = append(queued, in.Filename)
		}
		data := gin.H{"session_id": sessionID, "queued": queued}
		if rejected := failedItems(items); len(rejected) > 0 {
			data["rejected"] = rejected
		}
		c.JSON(http.StatusAccepted, response.APIResponse{
			Code:    response.CodeOK,
			Message: "queued",
			Data:    data,
		})
		return
	}

	if len(files) == 1 {
		result, err := h.outlines.Ingest(c.Request.Context(), inputs[0])
		if err != nil {
			writeServiceError(c, err, "ingest failed")
			return
		}
		response.OK(c, result)
		return
	}
	if len(inputs) > 0 {
		for i, item := range h.outlines.IngestBatch(c.Request.Context(), inputs) {
			items[slots[i]] = item
		}
	}
	response.OK(c, items)
}

// prepare validates one uploaded file and turns it into chunks. Every error
// it returns wraps app.ErrInvalidInput.
func (h *DocumentHandler) prepare(sessionID string, userID *uint, file *multipart.FileHeader) (app.IngestInput, error) {
	if file.Size > maxPDFSize {
		return app.IngestInput{}, fmt.Errorf("%s: %w: file too large (max 10MB)", file.Filename, app.ErrInvalidInput)
	}
	contentType := file.Header.Get("Content-Type")
	if !app.IsPDF(file.Filename, contentType) {
		return app.IngestInput{}, fmt.Errorf("%s: %w", file.Filename, app.ErrUnsupportedContent)
	}
	chunks, err := h.chunkFile(file)
	if err != nil {
		return app.IngestInput{}, fmt.Errorf("%s: %w: failed to extract text from PDF: %v", file.Filename, app.ErrInvalidInput, err)
	}
	return app.IngestInput{
		SessionID:   sessionID,
		Filename:    file.Filename,
		ContentType: contentType,
		UserID:      userID,
		Chunks:      chunks,
	}, nil
}

func (h *DocumentHandler) chunkFile(file *multipart.FileHeader) ([]model.ChunkInput, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pages, err := h.extract(f)
	if err != nil {
		return nil, err
	}
	return textchunk.ChunkPages(pages, h.chunkSize, h.chunkOverlap), nil
}

func failedItems(items []app.BatchItem) []app.BatchItem {
	var out []app.BatchItem
	for _, item := range items {
		if item.Err != nil {
			out = append(out, item)
		}
	}
	return out
}

func (h *DocumentHandler) GetOutline(c *gin.Context) {
	result, err := h.outlines.GetDocumentOutline(c.Request.Context(), c.Param("session_id"), c.Param("filename"))
	if err != nil {
		writeServiceError(c, err, "get document outline failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	sessionID, filename := c.Param("session_id"), c.Param("filename")
	deleted, err := h.outlines.DeleteDocument(c.Request.Context(), sessionID, filename)
	if err != nil {
		writeServiceError(c, err, "delete document failed")
		return
	}
	if !deleted {
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
		return
	}
	response.OK(c, gin.H{"deleted_filename": filename})
}

func (h *DocumentHandler) GetSessionOutline(c *gin.Context) {
	sections, err := h.outlines.GetSessionOutline(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeServiceError(c, err, "get session outline failed")
		return
	}
	response.OK(c, gin.H{"session_id": c.Param("session_id"), "sections": sections})
}
