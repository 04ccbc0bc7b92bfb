package http

import (
	"encoding/json"
	"io"
	"net/http"

	"feedbackbot/internal/interfaces"
	"feedbackbot/internal/metrics"
	"feedbackbot/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack/slackevents"
)

const (
	maxRequestBytes = 1 << 20

	// Slack sends this header on transport retries of an event it already
	// delivered.
	retryNumHeader = "X-Slack-Retry-Num"

	// legacyMentionEvent is the plural event type older deployments matched on.
	legacyMentionEvent = "app_mentions"
)

type Handler struct {
	bot    interfaces.BotActions
	logger zerolog.Logger
}

func NewHandler(bot interfaces.BotActions, logger zerolog.Logger) *Handler {
	return &Handler{bot: bot, logger: logger}
}

// eventEnvelope is the subset of an Events API callback the bot reads.
type eventEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Channel string `json:"channel"`
		User    string `json:"user"`
	} `json:"event"`
}

// NewRouter builds the gin engine with every route and middleware attached.
func NewRouter(bot interfaces.BotActions, mw *Middleware, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	SetupRoutes(r, NewHandler(bot, logger), mw)
	return r
}

func SetupRoutes(r *gin.Engine, h *Handler, mw *Middleware) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(maxRequestBytes))
	r.Use(Metrics())
	r.Use(mw.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	events := r.Group("/")
	events.Use(mw.RateLimitPerIP(5, 20))
	events.Use(mw.VerifySlackSignature())
	{
		events.POST("/events", h.HandleEvent)
		events.POST("/slack/events", h.HandleEvent)
	}
}

// HandleEvent answers the URL verification handshake and dispatches
// mention commands to the bot.
func (h *Handler) HandleEvent(c *gin.Context) {
	body, err := rawBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	switch env.Type {
	case slackevents.URLVerification:
		c.JSON(http.StatusOK, gin.H{"challenge": env.Challenge})
		return
	case slackevents.CallbackEvent:
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if env.Event.Type != string(slackevents.AppMention) && env.Event.Type != legacyMentionEvent {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if env.Event.Type == legacyMentionEvent {
		h.logger.Debug().Msg("matched legacy app_mentions event type")
	}

	if retry := c.GetHeader(retryNumHeader); retry != "" {
		h.logger.Info().Str("retry_num", retry).Msg("ignoring redelivered event")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	text := CleanEventText(env.Event.Text)
	intent := usecases.ClassifyIntent(text)
	metrics.InboundEvents.WithLabelValues(intent.String()).Inc()

	log := h.logger.With().
		Str("intent", intent.String()).
		Str("text", TruncateString(text, MaxLoggedTextLength)).
		Str("channel", env.Event.Channel).
		Str("user", env.Event.User).
		Logger()

	switch intent {
	case usecases.IntentIntroduce:
		err = h.bot.Introduce(c.Request.Context())
	case usecases.IntentListFeedback:
		err = h.bot.Run(c.Request.Context())
	default:
		log.Debug().Msg("mention without a known command")
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "command failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// rawBody returns the body captured by VerifySlackSignature, reading it
// directly when the middleware did not run.
func rawBody(c *gin.Context) ([]byte, error) {
	if v, ok := c.Get(rawBodyKey); ok {
		if body, ok := v.([]byte); ok {
			return body, nil
		}
	}
	return io.ReadAll(c.Request.Body)
}
