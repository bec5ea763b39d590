package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"legalease/internal/extract"
	"legalease/internal/model"
	"legalease/internal/service"
	"legalease/internal/validation"
)

// headSize is how much of an upload is read to check the PDF signature.
const headSize = 1024

type analyzeResponse struct {
	Success      bool         `json:"success"`
	Analysis     fiber.Map    `json:"analysis"`
	DocumentInfo analyzedInfo `json:"document_info"`
	Warning      string       `json:"warning,omitempty"`
}

type analyzedInfo struct {
	Filename       string    `json:"filename"`
	TextLength     int       `json:"text_length"`
	TotalPages     int       `json:"total_pages"`
	PagesProcessed int       `json:"pages_processed"`
	Truncated      bool      `json:"truncated"`
	ProcessedAt    time.Time `json:"processed_at"`
}

type questionRequest struct {
	Question   *string `json:"question"`
	DocumentID *string `json:"document_id"`
}

type answerResponse struct {
	Success       bool             `json:"success"`
	Answer        string           `json:"answer"`
	SourceSection *string          `json:"source_section"`
	Confidence    model.Confidence `json:"confidence"`
	DocumentID    string           `json:"document_id"`
	Question      string           `json:"question"`
	AnsweredAt    time.Time        `json:"answered_at"`
	Warning       string           `json:"warning,omitempty"`
}

type statsBody struct {
	TotalDocuments int        `json:"total_documents"`
	OldestDocument *time.Time `json:"oldest_document"`
	NewestDocument *time.Time `json:"newest_document"`
	Timestamp      time.Time  `json:"timestamp"`
}

const degradedWarning = "Answer may be incomplete due to processing issues"

// AnalyzeDocument handles a multipart PDF upload (field name: file).
//
// @Summary Upload and analyze a legal document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF document"
// @Success 200 {object} analyzeResponse
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/analyze [post]
func AnalyzeDocument(svc service.DocumentService, maxFileSize int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "NO_FILE", "No file provided", "Please select a PDF file to upload")
		}
		if strings.TrimSpace(fh.Filename) == "" {
			return writeError(c, fiber.StatusBadRequest, "EMPTY_FILENAME", "No file selected", "Please select a valid PDF file")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILE", "Cannot open uploaded file", "Please upload a valid PDF document")
		}
		defer f.Close()

		head := make([]byte, headSize)
		n, err := io.ReadFull(f, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILE", "Cannot read uploaded file", "Please upload a valid PDF document")
		}
		if err := validation.PDFFile(fh.Filename, fh.Size, head[:n], maxFileSize); err != nil {
			if errors.Is(err, validation.ErrFileTooLarge) {
				return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error(), "Please upload a smaller file")
			}
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILE", err.Error(), "Please upload a valid PDF document")
		}

		// The extractor rewinds the file before reading it.
		out, err := svc.Analyze(c.UserContext(), f, validation.SanitizeFilename(fh.Filename))
		if err != nil {
			switch {
			case errors.Is(err, extract.ErrNoText), errors.Is(err, service.ErrEmptyText):
				return writeError(c, fiber.StatusBadRequest, "PDF_EXTRACTION_ERROR", "Failed to extract text from PDF", extract.ErrNoText.Error())
			case errors.Is(err, extract.ErrUnreadable):
				return writeError(c, fiber.StatusBadRequest, "PDF_EXTRACTION_ERROR", "Failed to extract text from PDF", "Unable to read PDF content")
			default:
				return writeError(c, fiber.StatusInternalServerError, "ANALYSIS_ERROR", "Failed to analyze document", "Please try again or contact support")
			}
		}

		body, err := analysisBody(out.Analysis, out.DocumentID)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "ANALYSIS_ERROR", "Failed to analyze document", "Please try again or contact support")
		}
		res := analyzeResponse{
			Success:  true,
			Analysis: body,
			DocumentInfo: analyzedInfo{
				Filename:       out.Filename,
				TextLength:     out.TextLength,
				TotalPages:     out.TotalPages,
				PagesProcessed: out.PagesProcessed,
				Truncated:      out.Truncated,
				ProcessedAt:    out.ProcessedAt,
			},
		}
		if out.Analysis.Degraded() {
			res.Warning = "Analysis may be incomplete due to processing issues"
		}
		return c.JSON(res)
	}
}

// analysisBody flattens an analysis (extra fields included) and tags it with the document id.
func analysisBody(res model.AnalysisResult, id string) (fiber.Map, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	body := fiber.Map{}
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, err
	}
	body["document_id"] = id
	return body, nil
}

// AskQuestion answers a question about a previously analyzed document.
//
// @Summary Ask a question about a document
// @Tags documents
// @Accept json
// @Produce json
// @Param request body questionRequest true "question and document_id"
// @Success 200 {object} answerResponse
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/question [post]
func AskQuestion(svc service.DocumentService, maxQuestionLength int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !isJSON(c.Get(fiber.HeaderContentType)) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CONTENT_TYPE", "Request must be JSON",
				"Please send a JSON request with question and document_id")
		}

		var req questionRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "Invalid request format", "Request body is not valid JSON")
		}
		if req.Question == nil || req.DocumentID == nil {
			return writeError(c, fiber.StatusBadRequest, "MISSING_FIELDS", "Missing required fields",
				"Please provide both question and document_id")
		}

		question, err := validation.Question(*req.Question, maxQuestionLength)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_QUESTION", err.Error(),
				"Please provide a valid question about the document")
		}
		id := strings.TrimSpace(*req.DocumentID)

		ans, err := svc.Ask(c.UserContext(), id, question)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrIDRequired), errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found or expired",
					"Please upload the document again or check the document ID")
			case errors.Is(err, service.ErrEmptyText):
				return writeError(c, fiber.StatusBadRequest, "NO_DOCUMENT_TEXT", "Document text not available",
					"Please re-upload the document")
			default:
				return writeError(c, fiber.StatusInternalServerError, "QA_ERROR", "Failed to answer question",
					"Please try again or contact support")
			}
		}

		res := answerResponse{
			Success:       true,
			Answer:        ans.Answer,
			SourceSection: ans.SourceSection,
			Confidence:    ans.Confidence,
			DocumentID:    id,
			Question:      question,
			AnsweredAt:    time.Now().UTC(),
		}
		if ans.Degraded() {
			res.Warning = degradedWarning
		}
		return c.JSON(res)
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == fiber.MIMEApplicationJSON || strings.HasSuffix(mt, "+json")
}

// GetDocumentInfo returns metadata for a stored document. The text itself is never returned.
//
// @Summary Get document metadata
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} model.DocumentInfo
// @Failure 404 {object} errorPayload
// @Router /api/documents/{id} [get]
func GetDocumentInfo(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := svc.Info(c.UserContext(), strings.TrimSpace(c.Params("id")))
		if err != nil {
			return documentError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "document_info": info})
	}
}

// DeleteDocument removes a stored document before it expires.
//
// @Summary Delete a document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errorPayload
// @Router /api/documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Params("id"))
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return documentError(c, err)
		}
		return c.JSON(fiber.Map{
			"success":     true,
			"message":     "Document deleted successfully",
			"document_id": id,
		})
	}
}

func documentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_DOCUMENT_ID", "Document ID is required", "")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found or expired",
			"Please upload the document again or check the document ID")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "An internal server error occurred", "Please try again later")
	}
}

// GetStats reports how many documents are held and their age range.
//
// @Summary Document store statistics
// @Tags documents
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/stats [get]
func GetStats(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := svc.Stats(c.UserContext())
		return c.JSON(fiber.Map{
			"success": true,
			"stats": statsBody{
				TotalDocuments: st.Count,
				OldestDocument: st.OldestCreatedAt,
				NewestDocument: st.NewestCreatedAt,
				Timestamp:      time.Now().UTC(),
			},
		})
	}
}
