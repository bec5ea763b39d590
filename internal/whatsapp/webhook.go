// Package whatsapp serves the Twilio WhatsApp webhook on top of the document pipeline.
package whatsapp

import (
	"context"
	"encoding/xml"
	"errors"
	"log/slog"
	"strings"

	"github.com/docker/go-units"
	"github.com/gofiber/fiber/v2"

	"legalease/internal/extract"
	"legalease/internal/logging"
	"legalease/internal/service"
	"legalease/internal/validation"
)

// UploadFilename names every document received over WhatsApp.
const UploadFilename = "whatsapp_document.pdf"

var (
	helpCommands  = map[string]bool{"help": true, "start": true, "hello": true, "hi": true}
	resetCommands = map[string]bool{"new": true, "reset": true, "clear": true}
)

type Config struct {
	MaxFileSize       int64
	MaxQuestionLength int
}

// Webhook turns incoming messages into pipeline calls and answers with TwiML.
type Webhook struct {
	svc      service.DocumentService
	media    MediaFetcher
	sessions *Sessions
	cfg      Config
	log      *slog.Logger
}

type Option func(*Webhook)

func WithLogger(l *slog.Logger) Option {
	return func(w *Webhook) { w.log = l }
}

func NewWebhook(svc service.DocumentService, media MediaFetcher, sessions *Sessions, cfg Config, opts ...Option) *Webhook {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = validation.DefaultMaxFileSize
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = validation.DefaultMaxQuestionLength
	}
	if sessions == nil {
		sessions = NewSessions(0)
	}
	w := &Webhook{svc: svc, media: media, sessions: sessions, cfg: cfg}
	for _, opt := range opts {
		opt(w)
	}
	w.log = logging.OrDiscard(w.log).With("component", "whatsapp")
	return w
}

// Register mounts GET and POST /webhook on r. limit guards the POST route and may be nil.
func (w *Webhook) Register(r fiber.Router, limit fiber.Handler) {
	r.Get("/webhook", Verify())
	if limit != nil {
		r.Post("/webhook", limit, w.Handle)
		return
	}
	r.Post("/webhook", w.Handle)
}

// Verify answers Twilio's webhook check.
func Verify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendString("WhatsApp webhook verified")
	}
}

// Handle processes one incoming message (form fields From, Body, MediaUrl0, MediaContentType0).
func (w *Webhook) Handle(c *fiber.Ctx) error {
	from := strings.TrimSpace(c.FormValue("From"))
	if from == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing From")
	}
	body := strings.TrimSpace(c.FormValue("Body"))
	mediaURL := strings.TrimSpace(c.FormValue("MediaUrl0"))
	mediaType := strings.ToLower(c.FormValue("MediaContentType0"))
	command := strings.ToLower(body)

	w.log.Info("message received",
		"from", maskNumber(from),
		"has_media", mediaURL != "",
		"body_length", len(body),
	)

	ctx := c.UserContext()
	var reply string
	switch {
	case mediaURL != "" && strings.Contains(mediaType, "pdf"):
		reply = w.handleDocument(ctx, from, mediaURL)
	case helpCommands[command]:
		reply = helpMessage
	case resetCommands[command]:
		w.sessions.Clear(from)
		reply = sessionClearedMessage
	case body != "":
		id, ok := w.sessions.Get(from)
		if !ok {
			reply = welcomeMessage
			break
		}
		reply = w.handleQuestion(ctx, from, id, body)
	default:
		reply = welcomeMessage
	}
	return respond(c, reply)
}

func (w *Webhook) handleDocument(ctx context.Context, from, mediaURL string) string {
	data, err := w.media.Fetch(ctx, mediaURL)
	if err != nil {
		w.log.Warn("media download failed", "from", maskNumber(from), "error", err)
		if errors.Is(err, ErrMediaTooLarge) {
			return w.errorReply("Your document is too large to analyze.")
		}
		return w.errorReply("Could not download your document. Please try sending it again.")
	}

	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if err := validation.PDFFile(UploadFilename, int64(len(data)), head, w.cfg.MaxFileSize); err != nil {
		if errors.Is(err, validation.ErrFileTooLarge) {
			return w.errorReply("Your document is too large to analyze.")
		}
		return w.errorReply("There was an error processing your PDF. Please make sure it's a valid PDF file.")
	}

	out, err := w.svc.AnalyzeBytes(ctx, data, UploadFilename)
	if err != nil {
		w.log.Warn("document analysis failed", "from", maskNumber(from), "error", err)
		switch {
		case errors.Is(err, extract.ErrNoText), errors.Is(err, service.ErrEmptyText):
			return w.errorReply("Could not extract readable text from your PDF. Please ensure it contains text (not just images).")
		case errors.Is(err, extract.ErrUnreadable):
			return w.errorReply("There was an error processing your PDF. Please make sure it's a valid PDF file.")
		default:
			return w.errorReply("There was an error analyzing your document. Please try again.")
		}
	}

	w.sessions.Set(from, out.DocumentID)
	w.log.Info("document analyzed", "from", maskNumber(from), "document_id", out.DocumentID)
	return formatAnalysis(out.Analysis, "your document")
}

func (w *Webhook) handleQuestion(ctx context.Context, from, id, body string) string {
	question, err := validation.Question(body, w.cfg.MaxQuestionLength)
	if err != nil {
		return w.errorReply("I couldn't process your question: " + err.Error() + ".")
	}

	ans, err := w.svc.Ask(ctx, id, question)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			w.sessions.Clear(from)
			return "⌛ Your document has expired. Please send it again to keep asking questions."
		}
		w.log.Warn("question failed", "from", maskNumber(from), "document_id", id, "error", err)
		return w.errorReply("I couldn't process your question. Please try rephrasing it.")
	}
	return formatAnswer(question, *ans)
}

func (w *Webhook) errorReply(msg string) string {
	return formatError(msg, units.BytesSize(float64(w.cfg.MaxFileSize)))
}

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

func respond(c *fiber.Ctx, messages ...string) error {
	b, err := xml.Marshal(twimlResponse{Messages: messages})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.Send(append([]byte(xml.Header), b...))
}

// maskNumber keeps the last four digits of a sender for logs.
func maskNumber(n string) string {
	n = strings.TrimPrefix(n, "whatsapp:")
	if len(n) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}
