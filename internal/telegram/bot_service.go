// Package telegram handles the integration with the Telegram Bot API.
// It receives updates, drives the per-chat complaint conversation and hands
// complaint texts to the extraction pipeline.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"qalatransit/backend/internal/chatstate"
	"qalatransit/backend/internal/complaint"
	"qalatransit/backend/internal/localization"
	"qalatransit/backend/internal/models"
	"qalatransit/backend/internal/relay"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const dateFormat = "02.01.2006 15:04"

// maxListedComplaints caps the /mycomplaints reply length.
const maxListedComplaints = 10

// telegramAPI is the slice of the Bot API the dispatch logic needs; split
// out so the conversation flow can be exercised without the network.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotService receives Telegram updates and routes them through the
// complaint pipeline.
type BotService struct {
	BotAPI     *tgbotapi.BotAPI
	api        telegramAPI
	Complaints *complaint.Service
	States     chatstate.Store
	Localizer  *localization.Localizer
	Logger     *zap.Logger
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, svc *complaint.Service, states chatstate.Store, logger *zap.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	logger.Info("authorized on Telegram", zap.String("account", bot.Self.UserName))

	localizer, err := localization.NewLocalizer()
	if err != nil {
		return nil, fmt.Errorf("failed to create localizer: %w", err)
	}

	return &BotService{
		BotAPI:     bot,
		api:        bot,
		Complaints: svc,
		States:     states,
		Localizer:  localizer,
		Logger:     logger,
	}, nil
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		msg := update.Message
		username := ""
		lang := localization.DefaultLanguage
		if msg.From != nil {
			username = msg.From.UserName
			if msg.From.LanguageCode != "" {
				lang = msg.From.LanguageCode
			}
		}
		s.handleMessage(context.Background(), msg.Chat.ID, username, lang, msg.Text)
	}
}

// handleMessage dispatches one inbound text: commands change the chat
// state, freeform text is either a complaint (when awaited) or a hint.
func (s *BotService) handleMessage(ctx context.Context, chatID int64, username, lang, text string) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "/") {
		s.handleCommand(ctx, chatID, username, lang, trimmed)
		return
	}
	s.handleFreeform(ctx, chatID, username, lang, trimmed)
}

func (s *BotService) handleCommand(ctx context.Context, chatID int64, username, lang, text string) {
	cmd := strings.ToLower(text)
	// Group chats append the bot name: /complaint@SomeBot.
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}

	switch cmd {
	case "/start":
		s.States.Clear(ctx, chatID)
		s.sendWithKeyboard(chatID, s.Localizer.GetString(lang, "welcome"))
	case "/help":
		s.send(chatID, s.Localizer.GetString(lang, "help"))
	case "/complaint", "/zhaloba", "/жалоба":
		if err := s.States.Set(ctx, chatID, chatstate.AwaitingComplaint); err != nil {
			s.Logger.Error("failed to set chat state", zap.Int64("chat", chatID), zap.Error(err))
			s.send(chatID, s.Localizer.GetString(lang, "relay_failed"))
			return
		}
		s.send(chatID, s.Localizer.GetString(lang, "complaint_prompt"))
	case "/cancel", "/болдырмау":
		state, _ := s.States.Get(ctx, chatID)
		if state == chatstate.AwaitingComplaint {
			s.States.Clear(ctx, chatID)
			s.send(chatID, s.Localizer.GetString(lang, "cancel_done"))
		} else {
			s.send(chatID, s.Localizer.GetString(lang, "cancel_nothing"))
		}
	case "/mycomplaints":
		s.sendUserComplaints(chatID, username, lang)
	default:
		s.send(chatID, s.Localizer.GetString(lang, "unknown_command"))
	}
}

// handleFreeform consumes the awaiting flag: the acknowledgement goes out
// immediately and the relay call runs on its own goroutine so the update
// loop never blocks on the webhook.
func (s *BotService) handleFreeform(ctx context.Context, chatID int64, username, lang, text string) {
	state, err := s.States.Get(ctx, chatID)
	if err != nil {
		s.Logger.Error("failed to read chat state", zap.Int64("chat", chatID), zap.Error(err))
		return
	}
	if state != chatstate.AwaitingComplaint {
		s.send(chatID, s.Localizer.GetString(lang, "idle_hint"))
		return
	}

	s.States.Clear(ctx, chatID)
	s.send(chatID, s.Localizer.GetString(lang, "processing"))
	go s.processComplaint(chatID, username, lang, text)
}

func (s *BotService) processComplaint(chatID int64, username, lang, text string) {
	_, raw, err := s.Complaints.Submit(context.Background(), text, "telegram", username, nil, nil)
	if errors.Is(err, relay.ErrNotConfigured) {
		s.send(chatID, s.Localizer.GetString(lang, "accepted_fallback"))
		return
	}
	if err != nil {
		s.Logger.Error("complaint relay failed", zap.Int64("chat", chatID), zap.Error(err))
		s.send(chatID, s.Localizer.GetString(lang, "relay_failed"))
		return
	}
	s.send(chatID, s.formatResult(lang, raw))
}

// formatResult turns the webhook JSON into a readable summary message.
// An unparseable body falls back to the raw response.
func (s *BotService) formatResult(lang string, raw []byte) string {
	var ext relay.Extraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		return s.Localizer.GetString(lang, "accepted_fallback") + string(raw)
	}
	if ext.Error != nil {
		return s.Localizer.GetString(lang, "error_prefix") + *ext.Error
	}

	var b strings.Builder
	b.WriteString(s.Localizer.GetString(lang, "accepted_header"))
	if ext.Route != nil {
		b.WriteString(s.Localizer.GetString(lang, "label_route") + *ext.Route + "\n")
	}
	if ext.Object != nil {
		b.WriteString(s.Localizer.GetString(lang, "label_object") + *ext.Object + "\n")
	}
	if ext.Place != nil {
		b.WriteString(s.Localizer.GetString(lang, "label_place") + *ext.Place + "\n")
	}
	if ext.Actor != nil {
		b.WriteString(s.Localizer.GetString(lang, "label_actor") + *ext.Actor + "\n")
	}
	if ext.Priority != nil {
		b.WriteString("\n" + priorityEmoji(*ext.Priority) +
			s.Localizer.GetString(lang, "label_priority") + *ext.Priority + "\n")
	}
	aspects := ext.Aspects
	if aspects == nil {
		aspects = ext.Aspect
	}
	if len(aspects) > 0 {
		b.WriteString(s.Localizer.GetString(lang, "label_aspects"))
		for _, a := range aspects {
			b.WriteString("  • " + a + "\n")
		}
	}
	b.WriteString(s.Localizer.GetString(lang, "accepted_footer"))
	return b.String()
}

func (s *BotService) sendUserComplaints(chatID int64, username, lang string) {
	if username == "" {
		s.send(chatID, s.Localizer.GetString(lang, "username_required"))
		return
	}

	complaints, err := s.Complaints.Mine(username)
	if err != nil {
		s.Logger.Error("failed to load user complaints", zap.String("username", username), zap.Error(err))
		s.send(chatID, s.Localizer.GetString(lang, "relay_failed"))
		return
	}
	if len(complaints) == 0 {
		s.send(chatID, s.Localizer.GetString(lang, "no_complaints"))
		return
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf(s.Localizer.GetString(lang, "my_complaints_header"), len(complaints)))
	for i, c := range complaints {
		if i >= maxListedComplaints {
			b.WriteString(fmt.Sprintf(s.Localizer.GetString(lang, "more_complaints"),
				len(complaints)-maxListedComplaints))
			break
		}
		b.WriteString(fmt.Sprintf("<b>%d.</b> ", i+1))
		if c.Route != nil {
			b.WriteString(s.Localizer.GetString(lang, "label_route") + *c.Route + "\n")
		}
		if c.Place != nil {
			b.WriteString("📍 " + *c.Place + "\n")
		}
		if c.Priority != nil {
			b.WriteString(priorityEmoji(*c.Priority) + " " + *c.Priority + "\n")
		}
		b.WriteString("📅 " + c.CreatedAt.Format(dateFormat) + "\n")
		b.WriteString("📊 " + s.formatStatus(lang, c.Status) + "\n")
		if c.RawText != nil {
			b.WriteString("<i>" + truncate(*c.RawText, 80) + "</i>\n")
		}
		b.WriteString("\n")
	}
	s.send(chatID, b.String())
}

func (s *BotService) formatStatus(lang, status string) string {
	switch strings.ToUpper(status) {
	case models.StatusNew:
		return s.Localizer.GetString(lang, "status_new")
	case models.StatusInProgress:
		return s.Localizer.GetString(lang, "status_in_progress")
	case models.StatusResolved:
		return s.Localizer.GetString(lang, "status_resolved")
	case models.StatusRejected:
		return s.Localizer.GetString(lang, "status_rejected")
	default:
		return s.Localizer.GetString(lang, "status_unknown")
	}
}

// priorityEmoji picks a severity marker by keyword, covering the Kazakh and
// Russian priority labels the extraction webhook emits.
func priorityEmoji(priority string) string {
	p := strings.ToLower(priority)
	switch {
	case strings.Contains(p, "өте жоғары"), strings.Contains(p, "критическ"), strings.Contains(p, "очень высок"):
		return "🔴"
	case strings.Contains(p, "жоғары"), strings.Contains(p, "высок"):
		return "🟠"
	case strings.Contains(p, "орташа"), strings.Contains(p, "средн"):
		return "🟡"
	case strings.Contains(p, "төмен"), strings.Contains(p, "низк"):
		return "🟢"
	default:
		return "ℹ️"
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func (s *BotService) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := s.api.Send(msg); err != nil {
		s.Logger.Error("failed to send message", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (s *BotService) sendWithKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/complaint"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/mycomplaints"),
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
	if _, err := s.api.Send(msg); err != nil {
		s.Logger.Error("failed to send message", zap.Int64("chat", chatID), zap.Error(err))
	}
}
