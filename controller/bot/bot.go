package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/kylycht/ratebot/metrics"
	"github.com/kylycht/ratebot/model"
	"github.com/kylycht/ratebot/service"
	"github.com/kylycht/ratebot/storage/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender is the subset of *tgbotapi.BotAPI used by the bot
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Config struct {
	Workers       int          // number of shards
	QueueSize     int          // buffered updates per shard
	DefaultTarget model.Symbol // target of "100 USD" quick conversion
	MaxAmount     float64      // largest accepted amount, 0 disables the check
	Pairs         []Pair       // quick conversion keyboard
	FloodRate     float64      // updates per second allowed per user, 0 disables flood control
	FloodBurst    int          // burst of the flood limiter
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.DefaultTarget == "" {
		c.DefaultTarget = "RUB"
	}
	if len(c.Pairs) == 0 {
		c.Pairs = DefaultPairs
	}
	if c.FloodRate > 0 && c.FloodBurst <= 0 {
		c.FloodBurst = 1
	}
}

type Bot struct {
	cfg      Config           // bot settings
	sender   Sender           // chat transport
	exchange service.Exchange // rate resolution
	sessions *session.Store   // pending pair selections
	metrics  *metrics.Metrics // optional metrics
}

func New(cfg Config, sender Sender, exchange service.Exchange, sessions *session.Store, m *metrics.Metrics) (*Bot, error) {
	if sender == nil || exchange == nil || sessions == nil {
		return nil, errors.New("bot requires sender, exchange and session store")
	}

	cfg.defaults()

	catalog := exchange.Catalog()
	if !catalog.Supported(cfg.DefaultTarget) {
		return nil, fmt.Errorf("default target %s is not supported", cfg.DefaultTarget)
	}
	for _, p := range cfg.Pairs {
		if !catalog.Supported(p.From) || !catalog.Supported(p.To) {
			return nil, fmt.Errorf("keyboard pair %s/%s is not supported", p.From, p.To)
		}
	}

	return &Bot{
		cfg:      cfg,
		sender:   sender,
		exchange: exchange,
		sessions: sessions,
		metrics:  m,
	}, nil
}

// Handle processes a single update synchronously
func (b *Bot) Handle(ctx context.Context, update tgbotapi.Update) {
	logger := log.With().
		Str("trace_id", uuid.NewString()).
		Int("update_id", update.UpdateID).
		Int64("user_id", userOf(update)).
		Logger()
	ctx = logger.WithContext(ctx)

	switch {
	case update.CallbackQuery != nil:
		b.metrics.ObserveBotUpdate("callback")
		b.handleCallback(ctx, update.CallbackQuery)

	case update.Message != nil && update.Message.Chat != nil && update.Message.Text != "":
		b.metrics.ObserveBotUpdate("message")
		b.handleMessage(ctx, update.Message)

	default:
		b.metrics.ObserveBotUpdate("ignored")
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID

	zerolog.Ctx(ctx).Info().Str("text", text).Msg("message received")

	if cmd, args, ok := parseCommand(text); ok {
		switch cmd {
		case "start":
			b.reply(ctx, msg, fmt.Sprintf(welcomeText, formatSymbols(b.exchange.Catalog())), pairsKeyboard(b.cfg.Pairs))
			return

		case "help":
			b.reply(ctx, msg, fmt.Sprintf(helpText, b.cfg.DefaultTarget), nil)
			return

		case "rates":
			quotes := b.exchange.PopularRates(ctx)
			b.reply(ctx, msg, formatRates(b.exchange.Catalog(), b.exchange.PopularTarget(), quotes), nil)
			return

		case "convert":
			if args == "" {
				b.send(ctx, chatID, pairSelectionText, pairsKeyboard(b.cfg.Pairs))
				return
			}
			b.handleConvert(ctx, msg, args)
			return

		case "quick":
			b.reply(ctx, msg, quickText, pairsKeyboard(b.cfg.Pairs))
			return
		}
	}

	if p, ok := b.sessions.Get(senderOf(msg)); ok {
		b.handleAmount(ctx, msg, p)
		return
	}

	if amount, sym, ok := parseQuick(text); ok {
		b.convert(ctx, msg, amount, sym, b.cfg.DefaultTarget.String())
		return
	}

	b.reply(ctx, msg, unknownText, nil)
}

func (b *Bot) handleConvert(ctx context.Context, msg *tgbotapi.Message, args string) {
	amount, from, to, ok := parseConvert(args)
	if !ok {
		zerolog.Ctx(ctx).Warn().Str("args", args).Msg("unable to parse convert command")
		b.reply(ctx, msg, invalidFormatText, nil)
		return
	}

	b.convert(ctx, msg, amount, from, to)
}

func (b *Bot) handleAmount(ctx context.Context, msg *tgbotapi.Message, p session.Pending) {
	amount, err := parseAmount(msg.Text, b.cfg.MaxAmount)
	if err != nil {
		b.reply(ctx, msg, amountErrorText(err), nil)
		return
	}

	b.convert(ctx, msg, amount, p.From.String(), p.To.String())
	b.sessions.Clear(senderOf(msg))

	b.send(ctx, msg.Chat.ID, anotherText, singleButtonKeyboard(anotherButton, callbackBack))
}

// convert validates input, converts and replies with the result
func (b *Bot) convert(ctx context.Context, msg *tgbotapi.Message, amount float64, fromRaw, toRaw string) {
	logger := zerolog.Ctx(ctx)
	catalog := b.exchange.Catalog()

	if err := checkAmount(amount, b.cfg.MaxAmount); err != nil {
		b.reply(ctx, msg, amountErrorText(err), nil)
		return
	}

	from, to := model.Symbol(fromRaw), model.Symbol(toRaw)
	if !catalog.Supported(from) || !catalog.Supported(to) {
		b.reply(ctx, msg, fmt.Sprintf(unsupportedText, formatSymbols(catalog)), nil)
		return
	}

	logger.Info().Float64("amount", amount).Str("from", fromRaw).Str("to", toRaw).Msg("converting")

	res, err := b.exchange.Convert(ctx, amount, from, to)
	if err != nil {
		logger.Error().Err(err).Float64("amount", amount).Str("from", fromRaw).Str("to", toRaw).Msg("conversion failed")

		if errors.Is(err, service.ErrUnsupportedCurrency) {
			b.reply(ctx, msg, fmt.Sprintf(unsupportedText, formatSymbols(catalog)), nil)
			return
		}
		b.reply(ctx, msg, errorText, nil)
		return
	}

	b.reply(ctx, msg, formatConversion(catalog, res), nil)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("data", cb.Data).Msg("button pressed")

	answer := ""
	defer func() {
		if _, err := b.sender.Request(tgbotapi.NewCallback(cb.ID, answer)); err != nil {
			logger.Error().Err(err).Msg("unable to answer callback")
		}
	}()

	// callbacks without a sender cannot own a pending selection
	hasUser := cb.From != nil

	switch {
	case cb.Data == callbackBack:
		if hasUser {
			b.sessions.Clear(cb.From.ID)
		}
		b.edit(ctx, cb, quickText, pairsKeyboard(b.cfg.Pairs))

	case strings.HasPrefix(cb.Data, callbackPairPrefix):
		from, to, ok := parsePairCallback(cb.Data)
		catalog := b.exchange.Catalog()
		if !ok || !catalog.Supported(from) || !catalog.Supported(to) {
			answer = unknownPairText
			return
		}

		text := fmt.Sprintf(pairSelectedText, catalog.Name(from), catalog.Name(to), from, amountExamples(from.String()))
		b.edit(ctx, cb, text, singleButtonKeyboard(backButton, callbackBack))
		if hasUser {
			b.sessions.Begin(cb.From.ID, from, to)
		}

	default:
		logger.Warn().Str("data", cb.Data).Msg("unknown callback")
	}
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message, text string, markup interface{}) {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	if markup != nil {
		m.ReplyMarkup = markup
	}

	if _, err := b.sender.Send(m); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("unable to send reply")
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup interface{}) {
	m := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		m.ReplyMarkup = markup
	}

	if _, err := b.sender.Send(m); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("unable to send message")
	}
}

// edit replaces text of the message carrying the pressed button,
// inline messages have none so a new one is sent instead
func (b *Bot) edit(ctx context.Context, cb *tgbotapi.CallbackQuery, text string, markup tgbotapi.InlineKeyboardMarkup) {
	if cb.Message == nil {
		if cb.From != nil {
			b.send(ctx, cb.From.ID, text, markup)
		}
		return
	}

	e := tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, text, markup)
	if _, err := b.sender.Send(e); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", cb.Message.Chat.ID).Msg("unable to edit message")
	}
}

func amountErrorText(err error) string {
	switch {
	case errors.Is(err, errAmountNotPositive):
		return amountNotPositiveText
	case errors.Is(err, errAmountTooLarge):
		return amountTooLargeText
	default:
		return amountFormatText
	}
}

func senderOf(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}

func userOf(u tgbotapi.Update) int64 {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	case u.Message != nil:
		return senderOf(u.Message)
	}
	return 0
}
