package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"wellness-meal-planner/internal/app"
	"wellness-meal-planner/internal/auth"
	"wellness-meal-planner/internal/capture"
	"wellness-meal-planner/internal/config"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/metrics"
	"wellness-meal-planner/internal/planner"
	"wellness-meal-planner/internal/profile"
	"wellness-meal-planner/internal/session"
)

// updateTimeout bounds the background work done for one update,
// plan generation included.
const updateTimeout = 90 * time.Second

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot drives preference capture and plan delivery over Telegram.
type Bot struct {
	api          Sender
	app          *app.App
	sessions     *SessionRepository
	metricsStore *metrics.Store
	cache        *session.Cache
	cfg          *config.Config
	log          *logger.Logger
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(
	cfg *config.Config,
	a *app.App,
	sessions *SessionRepository,
	metricsStore *metrics.Store,
	cache *session.Cache,
	log *logger.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Info("telegram bot authorized", "account", api.Self.UserName)

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		log.Info("telegram webhook set", "description", resp.Description)
	}

	return newBot(api, cfg, a, sessions, metricsStore, cache, log), nil
}

func newBot(api Sender, cfg *config.Config, a *app.App, sessions *SessionRepository, metricsStore *metrics.Store, cache *session.Cache, log *logger.Logger) *Bot {
	if cache == nil {
		cache = session.NewCache()
	}
	return &Bot{
		api:          api,
		app:          a,
		sessions:     sessions,
		metricsStore: metricsStore,
		cache:        cache,
		cfg:          cfg,
		log:          log.With("component", "TelegramBot"),
	}
}

// HandleWebhook acknowledges the update at once and processes it in the
// background, so Telegram never waits on plan generation.
func (b *Bot) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.log.Warn("error parsing update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		b.HandleUpdate(ctx, update)
	}()
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if update.CallbackQuery.From == nil || !b.allowed(update.CallbackQuery.From) {
			return
		}
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		if update.Message.From == nil || !b.allowed(update.Message.From) {
			return
		}
		b.processMessage(ctx, update.Message)
	}
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	if slices.Contains(b.cfg.TelegramAllowedUserIDs, from.ID) {
		return true
	}
	b.log.Warn("unauthorized access attempt", "telegram_id", from.ID, "username", from.UserName)
	return false
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "plan":
		b.handlePlan(ctx, msg)
	case "reset":
		b.handleReset(ctx, msg)
	case "metrics":
		b.handleMetricsRequest(ctx, msg)
	case "":
		b.handleText(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /start, /plan or /reset.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	sess := b.userSession(msg.From)
	view, err := b.app.ViewState(ctx, sess)
	if err != nil {
		b.log.Error("failed to resolve view state", "user_id", sess.UserID(), "error", err)
		b.reply(msg.Chat.ID, genericFailure)
		return
	}

	if view == profile.ViewDashboard {
		b.sendPlan(ctx, msg.Chat.ID, sess)
		return
	}

	existing, err := b.sessions.GetActive(ctx, sess.UserID())
	if err != nil {
		b.log.Error("failed to load bot session", "user_id", sess.UserID(), "error", err)
		b.reply(msg.Chat.ID, genericFailure)
		return
	}
	if existing != nil {
		existing.ChatID = msg.Chat.ID
		b.saveAndShow(ctx, existing, 0)
		return
	}
	b.startCapture(ctx, msg.Chat.ID, sess.UserID(), capture.New())
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message) {
	sess := b.userSession(msg.From)
	view, err := b.app.ViewState(ctx, sess)
	if err != nil {
		b.log.Error("failed to resolve view state", "user_id", sess.UserID(), "error", err)
		b.reply(msg.Chat.ID, genericFailure)
		return
	}
	if view != profile.ViewDashboard {
		b.reply(msg.Chat.ID, "You have not set your preferences yet. Send /start to begin.")
		return
	}
	b.sendPlan(ctx, msg.Chat.ID, sess)
}

// handleReset restarts capture, pre-filled from the stored profile.
func (b *Bot) handleReset(ctx context.Context, msg *tgbotapi.Message) {
	sess := b.userSession(msg.From)
	p, err := b.app.LoadProfile(ctx, sess)
	if err != nil {
		b.log.Error("failed to load profile", "user_id", sess.UserID(), "error", err)
		b.reply(msg.Chat.ID, genericFailure)
		return
	}
	w := capture.New()
	if p != nil {
		w = capture.Resume(profile.ToPreferences(p))
	}
	b.startCapture(ctx, msg.Chat.ID, sess.UserID(), w)
}

func (b *Bot) startCapture(ctx context.Context, chatID int64, userID string, w *capture.Wizard) {
	b.saveAndShow(ctx, &Session{UserID: userID, ChatID: chatID, State: StateCapture, Wizard: w}, 0)
}

// handleText feeds free text into the wizard step that expects it.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := telegramUserID(msg.From.ID)
	s, err := b.sessions.GetActive(ctx, userID)
	if err != nil {
		b.log.Error("failed to load bot session", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, genericFailure)
		return
	}
	if s == nil {
		b.reply(msg.Chat.ID, "Send /start to set up your preferences, or /plan for a new weekly plan.")
		return
	}
	s.ChatID = msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case s.Wizard.Step() == capture.StepName:
		_ = s.Wizard.SetName(text)
		if _, _, err := s.Wizard.Next(); err != nil {
			b.reply(msg.Chat.ID, "Please send a name.")
			return
		}
	case s.Wizard.Step() == capture.StepFoods && s.State != StateCapture:
		switch s.State {
		case StateAwaitAllergies:
			_ = s.Wizard.SetAllergies(text)
		case StateAwaitFavorites:
			_ = s.Wizard.SetFavoriteFoods(text)
		case StateAwaitDislikes:
			_ = s.Wizard.SetDislikes(text)
		}
		s.State = StateCapture
	case s.Wizard.Step() == capture.StepGoals:
		_ = s.Wizard.SetCalorieTarget(text)
	default:
		b.reply(msg.Chat.ID, "Use the buttons above to continue.")
		return
	}
	b.saveAndShow(ctx, s, 0)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil || query.Message.Chat == nil {
		b.answer(query.ID, "")
		return
	}
	userID := telegramUserID(query.From.ID)
	s, err := b.sessions.GetActive(ctx, userID)
	if err != nil {
		b.log.Error("failed to load bot session", "user_id", userID, "error", err)
		b.answer(query.ID, genericFailure)
		return
	}
	if s == nil {
		b.answer(query.ID, "This form has expired. Send /start to begin again.")
		return
	}
	s.ChatID = query.Message.Chat.ID

	kind, value, _ := strings.Cut(query.Data, ":")
	switch kind {
	case callbackDiet:
		err = s.Wizard.ToggleDiet(value)
	case callbackGoal:
		err = s.Wizard.ToggleGoal(value)
	case callbackField:
		state, ok := fieldStates[value]
		if !ok {
			err = capture.ErrUnknownOption
			break
		}
		s.State = state
	case callbackNav:
		s.State = StateCapture
		if value == navBack {
			err = s.Wizard.Back()
			break
		}
		var (
			prefs profile.Preferences
			done  bool
		)
		prefs, done, err = s.Wizard.Next()
		if err == nil && done {
			b.answer(query.ID, "")
			b.finishCapture(ctx, s, prefs, query.From)
			return
		}
	default:
		err = capture.ErrUnknownOption
	}

	switch {
	case errors.Is(err, capture.ErrCannotProceed):
		b.answer(query.ID, "Please complete this step first.")
		return
	case err != nil:
		b.log.Warn("rejected wizard action", "user_id", userID, "data", query.Data, "error", err)
		b.answer(query.ID, "That option is not available.")
		return
	}

	b.answer(query.ID, "")
	b.saveAndShow(ctx, s, query.Message.MessageID)
}

// finishCapture persists the collected preferences and sends a first plan.
// On failure the wizard is put back on its last step so the user can retry.
func (b *Bot) finishCapture(ctx context.Context, s *Session, prefs profile.Preferences, from *tgbotapi.User) {
	sess := b.userSession(from)
	_, view, err := b.app.SubmitPreferences(ctx, sess, prefs)
	if err != nil {
		if restored, rerr := capture.Restore(capture.Snapshot{Step: capture.StepGoals, Preferences: prefs}); rerr == nil {
			s.Wizard = restored
			if serr := b.sessions.Save(ctx, s); serr != nil {
				b.log.Error("failed to save bot session", "user_id", s.UserID, "error", serr)
			}
		}
		if errors.Is(err, app.ErrSubmissionInFlight) {
			b.reply(s.ChatID, "Your preferences are already being saved.")
			return
		}
		b.reply(s.ChatID, "We could not save your preferences. Please press Finish to try again.")
		return
	}

	if err := b.sessions.Delete(ctx, s.UserID); err != nil {
		b.log.Warn("failed to delete bot session", "user_id", s.UserID, "error", err)
	}
	b.reply(s.ChatID, "✅ Preferences saved!")
	if view == profile.ViewDashboard {
		b.sendPlan(ctx, s.ChatID, sess)
	}
}

// saveAndShow persists s and renders its current step, editing messageID
// in place when it is non-zero.
func (b *Bot) saveAndShow(ctx context.Context, s *Session, messageID int) {
	if err := b.sessions.Save(ctx, s); err != nil {
		b.log.Error("failed to save bot session", "user_id", s.UserID, "error", err)
		b.reply(s.ChatID, genericFailure)
		return
	}

	text, keyboard := renderStep(s.Wizard, s.State)
	if messageID != 0 {
		var edit tgbotapi.EditMessageTextConfig
		if keyboard != nil {
			edit = tgbotapi.NewEditMessageTextAndMarkup(s.ChatID, messageID, text, *keyboard)
		} else {
			edit = tgbotapi.NewEditMessageText(s.ChatID, messageID, text)
		}
		edit.ParseMode = tgbotapi.ModeMarkdown
		b.send(edit)
		return
	}

	msg := tgbotapi.NewMessage(s.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	b.send(msg)
}

func (b *Bot) sendPlan(ctx context.Context, chatID int64, sess *session.Session) {
	status := tgbotapi.NewMessage(chatID, "🧑‍🍳 *Thinking...*\n(Generating your weekly plan)")
	status.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(status)
	if err != nil {
		b.log.Error("failed to send initial reply", "error", err)
		return
	}

	res, prefs, err := b.app.GenerateForUser(ctx, sess)
	var text string
	switch {
	case errors.Is(err, app.ErrNoProfile):
		text = "You have not set your preferences yet. Send /start to begin."
	case err != nil:
		b.log.Error("failed to load profile for generation", "user_id", sess.UserID(), "error", err)
		text = genericFailure
	default:
		text = formatPlanMarkdown(res.Plan, prefs)
		if res.Source == planner.SourceFallback {
			text += "\n_Personalised plans are unavailable right now, so here is a sample week._"
		}
	}

	edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.send(edit)
}

func (b *Bot) handleMetricsRequest(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.AdminTelegramID == 0 || msg.From.ID != b.cfg.AdminTelegramID {
		b.reply(msg.Chat.ID, "⛔ Access Denied: Admin only.")
		return
	}

	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		b.log.Error("failed to fetch metrics", "error", err)
		b.reply(msg.Chat.ID, "❌ Error fetching metrics.")
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, formatMetricsReport(usage, metrics.GetSysHealth(b.dataDir())))
	out.ParseMode = tgbotapi.ModeMarkdown
	b.send(out)
}

func (b *Bot) dataDir() string {
	return filepath.Dir(b.cfg.DatabasePath)
}

func (b *Bot) userSession(from *tgbotapi.User) *session.Session {
	return session.New(&auth.Identity{
		UserID:      telegramUserID(from.ID),
		DisplayName: from.FirstName,
	}, b.cache)
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answer(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		b.log.Warn("failed to answer callback", "error", err)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn("failed to send telegram message", "error", err)
	}
}

// telegramUserID namespaces Telegram users apart from email accounts.
func telegramUserID(id int64) string {
	return fmt.Sprintf("telegram:%d", id)
}
