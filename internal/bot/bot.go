package bot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eugenenazirov/garage-discordbot/internal/storage"
)

// Session is the subset of *discordgo.Session the bot depends on.
type Session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	HeartbeatLatency() time.Duration
}

// NewSession creates a gateway session authenticated as a bot user.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsAll
	return session, nil
}

// Trigger replies to messages whose content starts with Prefix, ignoring case.
type Trigger struct {
	Prefix  string
	Respond func(msg *discordgo.Message, latency time.Duration) string
}

// DefaultTriggers answers "hello" and "!ping".
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Prefix: "hello",
			Respond: func(*discordgo.Message, time.Duration) string {
				return "Hello"
			},
		},
		{
			Prefix: "!ping",
			Respond: func(_ *discordgo.Message, latency time.Duration) string {
				return fmt.Sprintf("Pong! %dms", latency.Milliseconds())
			},
		},
	}
}

// Bot reacts to gateway events and keeps the status store current.
type Bot struct {
	session  Session
	store    storage.Storage
	logger   *zap.Logger
	triggers []Trigger
	limiter  *rate.Limiter
	clock    func() time.Time

	mu       sync.RWMutex
	selfID   string
	removers []func()
}

// Option configures Bot behaviour.
type Option func(*Bot)

// WithReplyLimit caps how many replies per second the bot sends. A
// non-positive rps disables the limit.
func WithReplyLimit(rps float64, burst int) Option {
	return func(b *Bot) {
		if rps <= 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTriggers replaces the default triggers.
func WithTriggers(triggers ...Trigger) Option {
	return func(b *Bot) {
		b.triggers = triggers
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(b *Bot) {
		b.clock = clock
	}
}

// New constructs a Bot over session.
func New(session Session, store storage.Storage, logger *zap.Logger, opts ...Option) *Bot {
	b := &Bot{
		session:  session,
		store:    store,
		logger:   logger,
		triggers: DefaultTriggers(),
		limiter:  rate.NewLimiter(1, 5),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start registers the event handlers and opens the gateway connection.
func (b *Bot) Start() error {
	b.mu.Lock()
	b.removers = append(b.removers,
		b.session.AddHandler(b.onReady),
		b.session.AddHandler(b.onDisconnect),
		b.session.AddHandler(b.onResumed),
		b.session.AddHandler(b.onMessageCreate),
	)
	b.mu.Unlock()

	b.logger.Info("starting discord bot")
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Close removes the handlers and closes the gateway connection.
func (b *Bot) Close() error {
	b.mu.Lock()
	removers := b.removers
	b.removers = nil
	b.mu.Unlock()

	for _, remove := range removers {
		if remove != nil {
			remove()
		}
	}

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	_ = b.store.MarkDisconnected(b.clock())
	return nil
}

// Latency is the most recent gateway heartbeat round trip.
func (b *Bot) Latency() time.Duration {
	latency := b.session.HeartbeatLatency()
	if latency < 0 {
		return 0
	}
	return latency
}

func (b *Bot) onReady(_ *discordgo.Session, event *discordgo.Ready) {
	if event == nil || event.User == nil {
		b.logger.Warn("ready event without user")
		return
	}

	b.mu.Lock()
	b.selfID = event.User.ID
	b.mu.Unlock()

	if err := b.store.MarkReady(event.User.Username, event.User.ID, b.clock()); err != nil {
		b.logger.Warn("failed to record ready state", zap.Error(err))
		return
	}
	b.logger.Info("logged in",
		zap.String("user", event.User.Username),
		zap.String("user_id", event.User.ID),
		zap.Int("guilds", len(event.Guilds)),
	)
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	_ = b.store.MarkDisconnected(b.clock())
	b.logger.Warn("gateway disconnected")
}

func (b *Bot) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	if err := b.store.MarkResumed(b.clock()); err != nil {
		b.logger.Warn("resumed before ready", zap.Error(err))
		return
	}
	b.logger.Info("gateway session resumed")
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, event *discordgo.MessageCreate) {
	if event == nil || event.Message == nil || event.Author == nil {
		return
	}

	b.mu.RLock()
	selfID := b.selfID
	b.mu.RUnlock()
	if event.Author.ID == selfID {
		return
	}

	_ = b.store.RecordMessage(b.clock())

	trigger, ok := b.match(event.Content)
	if !ok {
		return
	}

	b.logger.Info("trigger matched",
		zap.String("trigger", trigger.Prefix),
		zap.String("author", event.Author.Username),
		zap.String("channel_id", event.ChannelID),
	)

	if !b.limiter.Allow() {
		b.logger.Warn("reply dropped by rate limit",
			zap.String("trigger", trigger.Prefix),
			zap.String("channel_id", event.ChannelID),
		)
		return
	}

	reply := trigger.Respond(event.Message, b.Latency())
	if _, err := b.session.ChannelMessageSend(event.ChannelID, reply); err != nil {
		b.logger.Error("failed to send reply", zap.String("channel_id", event.ChannelID), zap.Error(err))
		return
	}
	_ = b.store.RecordReply(b.clock())
}

func (b *Bot) match(content string) (Trigger, bool) {
	content = strings.ToLower(content)
	for _, t := range b.triggers {
		if strings.HasPrefix(content, strings.ToLower(t.Prefix)) {
			return t, true
		}
	}
	return Trigger{}, false
}
