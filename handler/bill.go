package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Rishie123/billprocessor/model"
	"github.com/Rishie123/billprocessor/service"
)

// maxUploadSize caps bill photos at 20MB
const maxUploadSize = 20 << 20

type BillHandler struct {
	pipeline *service.Pipeline
	store    *service.BillStore
}

func NewBillHandler(pipeline *service.Pipeline) *BillHandler {
	return &BillHandler{
		pipeline: pipeline,
		store:    service.GetBillStore(),
	}
}

var imageMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Upload accepts one bill image and runs the full pipeline before
// responding. The run blocks; there is no background processing and no
// second upload is expected until this one finishes.
func (h *BillHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	mimeType, ok := imageMimeTypes[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only JPG, JPEG and PNG files are allowed"})
		return
	}

	if header.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	// Trust the bytes over the upload headers
	if detected := http.DetectContentType(imageBytes); strings.HasPrefix(detected, "image/") {
		mimeType = detected
	}

	bill := &model.Bill{
		ID:        uuid.New().String(),
		Filename:  header.Filename,
		Status:    model.StatusReceived,
		CreatedAt: time.Now(),
	}
	h.store.Save(bill)

	outcome, err := h.pipeline.Process(c.Request.Context(), bill, imageBytes, mimeType)
	if err != nil {
		h.renderFailure(c, bill, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         bill.ID,
		"filename":   bill.Filename,
		"status":     model.StatusDone,
		"bill_type":  outcome.BillType,
		"party_name": outcome.PartyName,
		"drive_link": outcome.DriveLink,
		"record":     outcome.Record,
	})
}

// renderFailure maps pipeline errors to stage-specific responses. Parse
// failures carry the raw model text for diagnosis; transport failures do
// not get a body echo.
func (h *BillHandler) renderFailure(c *gin.Context, bill *model.Bill, err error) {
	resp := gin.H{
		"id":     bill.ID,
		"status": model.StatusFailed,
	}

	var stageErr *service.StageError
	if !errors.As(err, &stageErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed: " + err.Error()})
		return
	}
	resp["stage"] = stageErr.Stage

	var parseErr *service.ParseError
	isParseFailure := errors.As(err, &parseErr)
	if isParseFailure {
		resp["raw_response"] = parseErr.Raw
	}

	switch stageErr.Stage {
	case service.StageClassify:
		resp["error"] = "Could not determine the bill type or party name. The AI might have had trouble reading the image."
	case service.StageExtract:
		resp["error"] = "Could not extract detailed data from the bill. Please check the image quality."
		// The image was archived before extraction failed; show the link
		if stored := h.store.Get(bill.ID); stored != nil && stored.DriveLink != "" {
			resp["drive_link"] = stored.DriveLink
		}
	default:
		resp["error"] = fmt.Sprintf("Processing failed at the %s step", stageErr.Stage)
	}

	if isParseFailure {
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusBadGateway, resp)
}

// List returns all processed bills, newest first
func (h *BillHandler) List(c *gin.Context) {
	bills := h.store.List()

	// Return without the full record for list view
	result := make([]gin.H, len(bills))
	for i, bill := range bills {
		result[i] = gin.H{
			"id":         bill.ID,
			"filename":   bill.Filename,
			"status":     bill.Status,
			"bill_type":  bill.BillType,
			"party_name": bill.PartyName,
			"drive_link": bill.DriveLink,
			"created_at": bill.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"updated_at": bill.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	c.JSON(http.StatusOK, gin.H{"bills": result})
}

// Get returns a single bill including the extracted record
func (h *BillHandler) Get(c *gin.Context) {
	bill := h.store.Get(c.Param("id"))
	if bill == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bill not found"})
		return
	}

	c.JSON(http.StatusOK, bill)
}

// GetStatus returns the pipeline stage of a bill
func (h *BillHandler) GetStatus(c *gin.Context) {
	bill := h.store.Get(c.Param("id"))
	if bill == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bill not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        bill.ID,
		"status":    bill.Status,
		"error_msg": bill.ErrorMsg,
	})
}
