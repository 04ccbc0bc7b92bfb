package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type fakeBot struct {
	runs   int
	intros int
	err    error
}

func (f *fakeBot) Run(_ context.Context) error {
	f.runs++
	return f.err
}

func (f *fakeBot) Introduce(_ context.Context) error {
	f.intros++
	return f.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(bot *fakeBot, secret string) *gin.Engine {
	return NewRouter(bot, NewMiddleware(secret, zerolog.Nop()), zerolog.Nop())
}

func sign(secret, timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func signedRequest(path, body string, at time.Time) *http.Request {
	ts := strconv.FormatInt(at.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sign(testSecret, ts, body))
	return req
}

func mention(text string) string {
	return fmt.Sprintf(`{"type":"event_callback","event":{"type":"app_mention","text":%q,"channel":"C1","user":"U1"}}`, text)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestURLVerificationEchoesChallenge(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, testSecret)

	w := serve(r, signedRequest("/events", `{"type":"url_verification","challenge":"abc123"}`, time.Now()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"challenge":"abc123"}`, w.Body.String())
	assert.Zero(t, bot.runs+bot.intros)
}

func TestBadSignatureRejected(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, testSecret)

	req := signedRequest("/events", mention("<@UBOT> show feedback"), time.Now())
	req.Header.Set("X-Slack-Signature", "v0="+strings.Repeat("0", 64))
	w := serve(r, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
	assert.Zero(t, bot.runs)
}

func TestMissingSignatureHeadersRejected(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(mention("show")))
	w := serve(r, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, bot.runs)
}

func TestExpiredTimestampRejected(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, testSecret)

	w := serve(r, signedRequest("/events", mention("show feedback"), time.Now().Add(-10*time.Minute)))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, bot.runs)
}

func TestMentionDispatch(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantRuns   int
		wantIntros int
	}{
		{"list feedback", "<@UBOT> show me the feedback", 1, 0},
		{"introduce", "<@UBOT> please introduce yourself", 0, 1},
		{"introduce wins", "<@UBOT> intro and list", 0, 1},
		{"unknown", "<@UBOT> hello there", 0, 0},
		{"mention id ignored", "<@USHOWLIST>", 0, 0},
		{"channel link keyword", "<@UBOT> look at <#C1|show-and-tell>", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{}
			r := newTestRouter(bot, testSecret)

			w := serve(r, signedRequest("/events", mention(tt.text), time.Now()))

			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
			assert.Equal(t, tt.wantRuns, bot.runs)
			assert.Equal(t, tt.wantIntros, bot.intros)
		})
	}
}

func TestLegacyRouteAndEventType(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, testSecret)

	body := `{"type":"event_callback","event":{"type":"app_mentions","text":"list feedback"}}`
	w := serve(r, signedRequest("/slack/events", body, time.Now()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, bot.runs)
}

func TestOtherEventsIgnored(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, testSecret)

	body := `{"type":"event_callback","event":{"type":"message","text":"show feedback"}}`
	w := serve(r, signedRequest("/events", body, time.Now()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, bot.runs)
}

func TestRetriedDeliveryAcknowledgedWithoutDispatch(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, testSecret)

	req := signedRequest("/events", mention("show feedback"), time.Now())
	req.Header.Set("X-Slack-Retry-Num", "1")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, bot.runs)
}

func TestCommandFailureReturnsBadGateway(t *testing.T) {
	bot := &fakeBot{err: errors.New("notion returned status=401")}
	r := newTestRouter(bot, testSecret)

	w := serve(r, signedRequest("/events", mention("show feedback"), time.Now()))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 1, bot.runs)
}

func TestMalformedJSON(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, testSecret)

	w := serve(r, signedRequest("/events", `{"type":`, time.Now()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, bot.runs)
}

func TestDevelopmentModeSkipsVerification(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, "")

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(mention("show feedback")))
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, bot.runs)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeBot{}, testSecret)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&fakeBot{}, testSecret)
	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "feedbackbot_http_requests_total")
}

func TestRateLimitPerIP(t *testing.T) {
	mw := NewMiddleware("", zerolog.Nop())
	r := gin.New()
	r.Use(mw.RateLimitPerIP(0, 2))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitPerIPDropsIdleClients(t *testing.T) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	mw := NewMiddleware("", zerolog.Nop())
	mw.now = func() time.Time { return clock }

	r := gin.New()
	r.Use(mw.RateLimitPerIP(0, 1))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = addr
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, from("198.51.100.1:1000"))
	assert.Equal(t, http.StatusOK, from("198.51.100.2:1000"))
	assert.Equal(t, http.StatusTooManyRequests, from("198.51.100.1:1000"))
	assert.Len(t, mw.rateLimiters, 2)

	clock = clock.Add(limiterIdleTTL + time.Second)
	assert.Equal(t, http.StatusOK, from("198.51.100.3:1000"))
	assert.Len(t, mw.rateLimiters, 1, "idle limiters are swept")

	assert.Equal(t, http.StatusOK, from("198.51.100.1:1000"), "a swept client starts with a fresh limiter")
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"url_verification"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", ts)
	header.Set("X-Slack-Signature", sign(testSecret, ts, string(body)))

	require.NoError(t, VerifySignature(header, body, testSecret))
	assert.Error(t, VerifySignature(header, []byte(`{"type":"tampered"}`), testSecret))
	assert.Error(t, VerifySignature(header, body, "other-secret"))
}
