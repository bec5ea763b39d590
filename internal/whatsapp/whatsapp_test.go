package whatsapp

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"legalease/internal/extract"
	"legalease/internal/extract/extracttest"
	"legalease/internal/model"
	"legalease/internal/service"
	serviceMocks "legalease/internal/service/mocks"
)

type fakeFetcher struct {
	data []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, mediaURL string) ([]byte, error) {
	f.urls = append(f.urls, mediaURL)
	return f.data, f.err
}

func TestFormatAnalysis(t *testing.T) {
	res := model.AnalysisResult{
		Summary:   "A residential lease.",
		KeyPoints: []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7"},
		Warnings:  []string{"w1", "w2", "w3", "w4"},
	}
	out := formatAnalysis(res, "your document")

	assert.Contains(t, out, "*Document Analysis: your document*")
	assert.Contains(t, out, "A residential lease.")
	assert.Contains(t, out, "5. k5")
	assert.NotContains(t, out, "k6")
	assert.Contains(t, out, "3. w3")
	assert.NotContains(t, out, "w4")

	t.Run("no warnings section when empty", func(t *testing.T) {
		out := formatAnalysis(model.AnalysisResult{KeyPoints: []string{"only"}}, "doc")
		assert.NotContains(t, out, "IMPORTANT WARNINGS")
		assert.Contains(t, out, "Analysis completed")
	})
}

func TestFormatAnswer(t *testing.T) {
	source := "Section 4.2"
	cases := []struct {
		conf  model.Confidence
		emoji string
		label string
	}{
		{model.ConfidenceHigh, "🎯", "High"},
		{model.ConfidenceMedium, "📊", "Medium"},
		{model.ConfidenceLow, "🤔", "Low"},
		{"", "📊", "Medium"},
	}
	for _, tc := range cases {
		t.Run(string(tc.conf), func(t *testing.T) {
			out := formatAnswer("Can I have pets?", model.AnswerResult{Answer: "No.", SourceSection: &source, Confidence: tc.conf})
			assert.Contains(t, out, "Can I have pets?")
			assert.Contains(t, out, "No.")
			assert.Contains(t, out, "Section 4.2")
			assert.Contains(t, out, fmt.Sprintf("%s *Confidence: %s*", tc.emoji, tc.label))
		})
	}

	t.Run("no source", func(t *testing.T) {
		out := formatAnswer("q", model.AnswerResult{Answer: "a", Confidence: model.ConfidenceLow})
		assert.NotContains(t, out, "Source Reference")
	})
}

func TestSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessions(time.Hour)
	s.now = func() time.Time { return now }

	_, ok := s.Get("whatsapp:+15550001")
	assert.False(t, ok)

	s.Set("whatsapp:+15550001", "doc-1")
	id, ok := s.Get("whatsapp:+15550001")
	require.True(t, ok)
	assert.Equal(t, "doc-1", id)

	// Get refreshes the entry.
	now = now.Add(50 * time.Minute)
	_, ok = s.Get("whatsapp:+15550001")
	assert.True(t, ok)
	now = now.Add(50 * time.Minute)
	_, ok = s.Get("whatsapp:+15550001")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok = s.Get("whatsapp:+15550001")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	s.Set("a", "doc-a")
	s.Set("b", "doc-b")
	s.Clear("a")
	assert.Equal(t, 1, s.Len())
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestHTTPMediaFetcher(t *testing.T) {
	pdf := extracttest.PDF("Rent: $1200")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/media/ok":
			w.Write(pdf)
		case "/media/big":
			w.Write([]byte(strings.Repeat("x", 2048)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewHTTPMediaFetcher(MediaConfig{
		AccountSID:   "AC123",
		AuthToken:    "secret",
		MaxSize:      1024,
		AllowedHosts: []string{"127.0.0.1"},
	}, WithMediaHTTPClient(srv.Client()))

	t.Run("downloads with basic auth", func(t *testing.T) {
		data, err := f.Fetch(context.Background(), srv.URL+"/media/ok")
		require.NoError(t, err)
		assert.Equal(t, pdf, data)
	})

	t.Run("size cap", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/media/big")
		assert.ErrorIs(t, err, ErrMediaTooLarge)
	})

	t.Run("non-200", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/media/missing")
		assert.ErrorIs(t, err, ErrMediaStatus)
	})

	t.Run("host not allowed", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "https://169.254.169.254/latest/meta-data")
		assert.ErrorIs(t, err, ErrMediaHost)

		_, err = f.Fetch(context.Background(), "file:///etc/passwd")
		assert.ErrorIs(t, err, ErrMediaHost)
	})

	t.Run("default hosts accept twilio subdomains", func(t *testing.T) {
		d := NewHTTPMediaFetcher(MediaConfig{})
		assert.True(t, d.hostAllowed("api.twilio.com"))
		assert.True(t, d.hostAllowed("mms.twiliocdn.com"))
		assert.False(t, d.hostAllowed("eviltwilio.com"))
	})
}

func newTestApp(svc service.DocumentService, fetcher MediaFetcher, sessions *Sessions) *fiber.App {
	app := fiber.New()
	NewWebhook(svc, fetcher, sessions, Config{MaxFileSize: 10 << 20, MaxQuestionLength: 1000}).
		Register(app.Group("/whatsapp"), nil)
	return app
}

func send(t *testing.T, app *fiber.App, form url.Values) []string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "xml")

	var out twimlResponse
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&out))
	return out.Messages
}

func TestVerify(t *testing.T) {
	app := newTestApp(new(serviceMocks.MockDocumentService), &fakeFetcher{}, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whatsapp/webhook", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhook(t *testing.T) {
	const from = "whatsapp:+15551234567"
	pdf := extracttest.PDF("Rent: $1200 per month")

	t.Run("welcome without a session", func(t *testing.T) {
		app := newTestApp(new(serviceMocks.MockDocumentService), &fakeFetcher{}, NewSessions(0))
		msgs := send(t, app, url.Values{"From": {from}, "Body": {"what is the rent?"}})
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0], "Welcome to Legal EASE")
	})

	t.Run("help", func(t *testing.T) {
		app := newTestApp(new(serviceMocks.MockDocumentService), &fakeFetcher{}, NewSessions(0))
		for _, cmd := range []string{"help", "Start", " HI "} {
			msgs := send(t, app, url.Values{"From": {from}, "Body": {cmd}})
			assert.Contains(t, msgs[0], "Legal EASE Help", cmd)
		}
	})

	t.Run("document then question", func(t *testing.T) {
		svc := new(serviceMocks.MockDocumentService)
		fetcher := &fakeFetcher{data: pdf}
		sessions := NewSessions(time.Hour)
		app := newTestApp(svc, fetcher, sessions)

		svc.On("AnalyzeBytes", mock.Anything, pdf, UploadFilename).Return(&service.AnalyzeOutcome{
			DocumentID: "doc-1",
			Analysis:   model.AnalysisResult{Summary: "A lease.", KeyPoints: []string{"Rent is $1200"}},
		}, nil).Once()

		msgs := send(t, app, url.Values{
			"From":              {from},
			"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
			"MediaContentType0": {"application/pdf"},
		})
		assert.Contains(t, msgs[0], "A lease.")
		assert.Equal(t, []string{"https://api.twilio.com/media/ME1"}, fetcher.urls)

		id, ok := sessions.Get(from)
		require.True(t, ok)
		assert.Equal(t, "doc-1", id)

		source := "Clause 2"
		svc.On("Ask", mock.Anything, "doc-1", "What is the Rent?").Return(&model.AnswerResult{
			Answer: "$1200", SourceSection: &source, Confidence: model.ConfidenceHigh,
		}, nil).Once()

		msgs = send(t, app, url.Values{"From": {from}, "Body": {"What is the Rent?"}})
		assert.Contains(t, msgs[0], "$1200")
		assert.Contains(t, msgs[0], "Clause 2")
		svc.AssertExpectations(t)
	})

	t.Run("reset clears the session", func(t *testing.T) {
		sessions := NewSessions(0)
		sessions.Set(from, "doc-1")
		app := newTestApp(new(serviceMocks.MockDocumentService), &fakeFetcher{}, sessions)

		msgs := send(t, app, url.Values{"From": {from}, "Body": {"new"}})
		assert.Equal(t, sessionClearedMessage, msgs[0])
		_, ok := sessions.Get(from)
		assert.False(t, ok)
	})

	t.Run("expired document clears the session", func(t *testing.T) {
		svc := new(serviceMocks.MockDocumentService)
		sessions := NewSessions(0)
		sessions.Set(from, "doc-old")
		app := newTestApp(svc, &fakeFetcher{}, sessions)

		svc.On("Ask", mock.Anything, "doc-old", "Can I have pets?").Return(nil, service.ErrNotFound).Once()

		msgs := send(t, app, url.Values{"From": {from}, "Body": {"Can I have pets?"}})
		assert.Contains(t, msgs[0], "expired")
		_, ok := sessions.Get(from)
		assert.False(t, ok)
		svc.AssertExpectations(t)
	})

	t.Run("download failure", func(t *testing.T) {
		app := newTestApp(new(serviceMocks.MockDocumentService), &fakeFetcher{err: ErrMediaStatus}, NewSessions(0))
		msgs := send(t, app, url.Values{
			"From":              {from},
			"MediaUrl0":         {"https://api.twilio.com/media/ME2"},
			"MediaContentType0": {"application/pdf"},
		})
		assert.Contains(t, msgs[0], "Could not download your document")
	})

	t.Run("not a pdf", func(t *testing.T) {
		app := newTestApp(new(serviceMocks.MockDocumentService), &fakeFetcher{data: []byte("plain text")}, NewSessions(0))
		msgs := send(t, app, url.Values{
			"From":              {from},
			"MediaUrl0":         {"https://api.twilio.com/media/ME3"},
			"MediaContentType0": {"application/pdf"},
		})
		assert.Contains(t, msgs[0], "valid PDF")
	})

	t.Run("extraction errors", func(t *testing.T) {
		cases := map[string]error{
			"readable text": fmt.Errorf("extract text: %w", extract.ErrNoText),
			"valid PDF":     fmt.Errorf("extract text: %w", extract.ErrUnreadable),
			"analyzing":     errors.New("boom"),
		}
		for want, err := range cases {
			svc := new(serviceMocks.MockDocumentService)
			svc.On("AnalyzeBytes", mock.Anything, pdf, UploadFilename).Return(nil, err).Once()
			sessions := NewSessions(0)
			app := newTestApp(svc, &fakeFetcher{data: pdf}, sessions)

			msgs := send(t, app, url.Values{
				"From":              {from},
				"MediaUrl0":         {"https://api.twilio.com/media/ME4"},
				"MediaContentType0": {"application/pdf"},
			})
			assert.Contains(t, msgs[0], want)
			assert.Equal(t, 0, sessions.Len())
		}
	})

	t.Run("missing sender", func(t *testing.T) {
		app := newTestApp(new(serviceMocks.MockDocumentService), &fakeFetcher{}, nil)
		req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader("Body=hi"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMaskNumber(t *testing.T) {
	assert.Equal(t, "********4567", maskNumber("whatsapp:+15551234567"))
	assert.Equal(t, "****", maskNumber("123"))
}
