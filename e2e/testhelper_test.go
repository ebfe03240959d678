package e2e

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hirewise/api/internal/ai"
	"github.com/hirewise/api/internal/auth"
	"github.com/hirewise/api/internal/cache"
	"github.com/hirewise/api/internal/client"
	"github.com/hirewise/api/internal/config"
	"github.com/hirewise/api/internal/extract"
	"github.com/hirewise/api/internal/handler"
	"github.com/hirewise/api/internal/health"
	"github.com/hirewise/api/internal/intake"
	"github.com/hirewise/api/internal/middleware"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/notify"
	"github.com/hirewise/api/internal/queue"
	"github.com/hirewise/api/internal/server"
	"github.com/hirewise/api/internal/service"
	"github.com/hirewise/api/internal/store"
	ws "github.com/hirewise/api/internal/websocket"
	"github.com/hirewise/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	candidate = &auth.Principal{UserID: "cand-1", Email: "cand@example.com", CompanyID: "acme", Roles: []string{"candidate"}}
	recruiter = &auth.Principal{UserID: "rec-1", Email: "rec@example.com", CompanyID: "acme", Roles: []string{"recruiter"}}
	outsider  = &auth.Principal{UserID: "out-1", Email: "out@example.com", CompanyID: "globex", Roles: []string{"candidate"}}
)

const resumeAnswer = `{
  "skills": ["Go", "Redis"],
  "experience": [{"title": "Engineer", "company": "Acme", "startDate": "2019-01", "endDate": "present", "description": "Backend"}],
  "education": [],
  "summary": "Backend engineer.",
  "yearsOfExperience": 5
}`

const biasAnswer = `{
  "flags": [{"category": "age", "severity": "medium", "confidence": 0.8, "description": "\"young\" implies an age preference"}],
  "fairnessScore": 0.6,
  "summary": "One age-related phrase.",
  "recommendations": ["Remove age references"]
}`

// testApp holds the wired application and the queue the tests drain by hand.
type testApp struct {
	app   *fiber.App
	queue *manualQueue
	hub   *ws.Hub
}

// manualQueue holds enqueued jobs until drain runs them through the worker.
type manualQueue struct {
	mu        sync.Mutex
	pending   []*model.Job
	processor *worker.Processor
}

func (q *manualQueue) Enqueue(_ context.Context, job *model.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, job)
	return nil
}

func (q *manualQueue) Remove(_ context.Context, job *model.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.pending {
		if j.ID == job.ID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (q *manualQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// drain runs every pending job and returns the handler errors by job id.
func (q *manualQueue) drain(t *testing.T) map[string]error {
	t.Helper()
	q.mu.Lock()
	jobs := q.pending
	q.pending = nil
	q.mu.Unlock()

	errs := make(map[string]error)
	for _, job := range jobs {
		task, err := queue.NewTask(job)
		if err != nil {
			t.Fatalf("failed to build task: %v", err)
		}
		if err := q.processor.ProcessTask(context.Background(), task); err != nil {
			errs[job.ID] = err
		}
	}
	return errs
}

// fakeGroq answers chat completions by looking at the system prompt.
func fakeGroq(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			io.WriteString(w, `{"data":[]}`)
			return
		}

		var req client.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		answer := "{}"
		switch system := req.Messages[0].Content; {
		case strings.Contains(system, "resume parser"):
			answer = resumeAnswer
		case strings.Contains(system, "bias"):
			answer = biasAnswer
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": answer}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupApp wires the application the way main does, with Redis replaced by
// miniredis, Groq by a local fake and the asynq queue by manualQueue.
// Embedding and object storage stay unconfigured.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	validate := validator.New()
	jobCache := cache.New[string, *model.Job]("jobs", 100, time.Minute)
	tokenCache := cache.New[string, *auth.Principal]("tokens", 100, time.Minute)

	groq := fakeGroq(t)
	groqClient := client.NewGroqClient(&config.GroqConfig{APIKey: "test-key", BaseURL: groq.URL, Model: "test-model"})
	embeddingClient := client.NewEmbeddingClient(&config.EmbeddingConfig{})
	pdfExtractor, err := extract.NewPDFExtractor(ctx)
	if err != nil {
		t.Fatalf("failed to create pdf extractor: %v", err)
	}
	orchestrator := ai.NewOrchestrator(groqClient, embeddingClient, nil, extract.NewDocuments(pdfExtractor), validate)

	hub := ws.NewHub()
	go hub.Run(ctx)
	dispatcher := notify.NewDispatcher(nil, "", hub)

	q := &manualQueue{}
	jobStore := store.NewJobStore(redisClient, store.DefaultJobTTL)
	blobs := store.NewRedisBlobStore(redisClient, store.DefaultJobTTL)
	jobService := service.NewJobService(jobStore, blobs, q, dispatcher, nil, jobCache)
	q.processor = worker.NewProcessor(jobService, orchestrator)

	intakeService := service.NewIntakeService(intake.NewRules(intake.DefaultLimits()), jobService, orchestrator, nil, 0)

	authenticator := auth.NewAuthenticator(nil, testJWTSecret, tokenCache)
	authMiddleware := middleware.NewAuthMiddleware(authenticator)

	checker := health.NewChecker(time.Second,
		health.Redis(health.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })),
		health.AI(groqClient),
		health.Caches(jobCache, tokenCache),
	)

	app := server.New(50*1024*1024, "error")
	server.Register(app, &server.Handlers{
		Auth:         handler.NewAuthHandler(authenticator),
		Health:       handler.NewHealthHandler(checker),
		Upload:       handler.NewUploadHandler(intakeService, validate),
		Processing:   handler.NewProcessingHandler(jobService),
		AI:           handler.NewAIHandler(intakeService, validate),
		Notification: handler.NewNotificationHandler(dispatcher, hub, jobService, validate),
		APIAuth:      authMiddleware.Authenticate(),
		SocketAuth:   authMiddleware.AuthenticateSocket(),
		RateLimiter:  middleware.NewRateLimiter(redisClient),
		// very high limits so tests don't get blocked
		Limits: config.RateLimitConfig{UploadPerHour: 10000, AIPerMin: 10000, NotifyPerMin: 10000},
	})

	return &testApp{app: app, queue: q, hub: hub}
}

// tokenFor creates a legacy HMAC token for p.
func tokenFor(t *testing.T, p *auth.Principal) string {
	t.Helper()
	signed, err := auth.GenerateLegacyToken(testJWTSecret, p, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as p.
func doAuthRequest(t *testing.T, app *fiber.App, p *auth.Principal, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + tokenFor(t, p),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// uploadFile posts a multipart upload as p.
func uploadFile(t *testing.T, app *fiber.App, p *auth.Principal, fields map[string]string, fileName, contentType string, data []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		part.Write(data)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/uploads", &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, p))

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// resumeDocx builds a minimal Word document holding text.
func resumeDocx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			`<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`,
	}
	for _, name := range []string{"[Content_Types].xml", "word/document.xml"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to build docx: %v", err)
		}
		io.WriteString(w, parts[name])
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to build docx: %v", err)
	}
	return buf.Bytes()
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// dataOf returns the data object of a success envelope.
func dataOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", body)
	}
	return data
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body := readBody(t, resp)
		t.Fatalf("expected status %d, got %d\nbody: %s", expected, resp.StatusCode, body)
	}
}

// assertErrorCode checks the error envelope's code.
func assertErrorCode(t *testing.T, body map[string]interface{}, code string) {
	t.Helper()
	if body["success"] != false {
		t.Errorf("expected success=false, got %v", body["success"])
	}
	if body["code"] != code {
		t.Errorf("expected code %q, got %v", code, body["code"])
	}
}
