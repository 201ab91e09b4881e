package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"adaptive-meal-planner/internal/config"
	"adaptive-meal-planner/internal/engine"
	"adaptive-meal-planner/internal/metrics"
	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"
	"adaptive-meal-planner/internal/session"
	"adaptive-meal-planner/internal/shared"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// contextBloatTokens is the prompt size above which the admin is alerted.
const contextBloatTokens = 4000

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Bot drives one session per Telegram chat.
type Bot struct {
	api          botAPI
	sessions     *session.Store
	metricsStore *metrics.Store
	cfg          *config.Config
}

// NewBot initializes the Telegram API, sets the webhook and builds the
// session store that backs every chat.
func NewBot(cfg *config.Config, gateway engine.Gateway, metricsStore *metrics.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return newBot(api, cfg, gateway, metricsStore), nil
}

func newBot(api botAPI, cfg *config.Config, gateway engine.Gateway, metricsStore *metrics.Store) *Bot {
	b := &Bot{api: api, metricsStore: metricsStore, cfg: cfg}
	b.sessions = session.NewStore(cfg.SessionCapacity, cfg.SessionTTL, gateway, engine.WithUsageRecorder(b))
	return b
}

// RegisterHandlers mounts the webhook and health check on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		if b.isAllowed(update.CallbackQuery.From) {
			go b.handleCallbackQuery(update.CallbackQuery)
		}
		return
	}

	if update.Message == nil || !b.isAllowed(update.Message.From) {
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) isAllowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if slices.Contains(b.cfg.TelegramAllowedUserIDs, from.ID) {
		return true
	}
	log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", from.ID, from.UserName)
	return false
}

func (b *Bot) chatSession(chatID int64) *session.Session {
	return b.sessions.Open(session.ChatSessionID("telegram", chatID))
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.chatSession(chatID)
		b.sendMarkdown(chatID, helpText)
	case "profile":
		b.handleProfile(chatID, args)
	case "edit":
		b.handleEditProfile(chatID)
	case "regenerate":
		b.handleRegenerate(chatID)
	case "plan":
		b.handleShowPlan(chatID)
	case "day":
		b.handleShowDay(chatID, args)
	case "log":
		b.handleLog(chatID, args)
	case "analysis":
		b.handleShowAnalysis(chatID)
	case "dismiss":
		b.handleDismiss(chatID)
	case "metrics":
		b.handleMetricsRequest(msg)
	default:
		b.sendMarkdown(chatID, helpText)
	}
}

func (b *Bot) handleProfile(chatID int64, args string) {
	var p profile.Profile
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		b.sendMarkdown(chatID, "❌ *Invalid profile.* Send `/profile {...}` with your profile as JSON.")
		return
	}
	sess := b.chatSession(chatID)
	b.generate(chatID, func(ctx context.Context) (planner.WeeklyPlan, error) {
		return sess.SubmitProfile(ctx, p)
	})
}

func (b *Bot) handleRegenerate(chatID int64) {
	sess := b.chatSession(chatID)
	b.generate(chatID, sess.Regenerate)
}

// generate shows a progress message and replaces it with the plan or error.
func (b *Bot) generate(chatID int64, run func(ctx context.Context) (planner.WeeklyPlan, error)) {
	sent, err := b.sendMarkdown(chatID, "🧑‍⚕️ *Thinking...* \n(Building your 7-day plan)")
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	ctx, cancel := b.generationContext()
	defer cancel()

	plan, err := run(ctx)
	if err != nil {
		log.Printf("Error generating plan for chat %d: %v", chatID, err)
		b.editMarkdown(chatID, sent.MessageID, formatError("generating plan", err))
		return
	}
	b.editMarkdown(chatID, sent.MessageID, formatPlanOverview(plan))
}

func (b *Bot) handleEditProfile(chatID int64) {
	sess := b.chatSession(chatID)
	if err := sess.EditProfile(); err != nil {
		b.sendMarkdown(chatID, formatError("editing profile", err))
		return
	}
	eng, err := sess.Engine()
	if err != nil {
		b.sendMarkdown(chatID, formatError("editing profile", err))
		return
	}
	p, ok := eng.Profile()
	if !ok {
		b.sendMarkdown(chatID, "✏️ No profile yet. Send `/profile {...}` to create one.")
		return
	}
	b.sendMarkdown(chatID, formatProfileForEdit(p))
}

func (b *Bot) handleShowPlan(chatID int64) {
	plan, ok := b.currentPlan(chatID)
	if !ok {
		return
	}
	b.sendMarkdown(chatID, formatPlanOverview(plan))
}

func (b *Bot) handleShowDay(chatID int64, args string) {
	plan, ok := b.currentPlan(chatID)
	if !ok {
		return
	}
	idx, ok := b.parseDayNumber(chatID, args, len(plan.Days))
	if !ok {
		return
	}
	b.sendMarkdown(chatID, formatDay(idx, plan.Days[idx]))
}

func (b *Bot) handleLog(chatID int64, args string) {
	dayArg, body, _ := strings.Cut(args, " ")
	idx, ok := b.parseDayNumber(chatID, dayArg, planner.DaysPerWeek)
	if !ok {
		return
	}
	var dayLog planner.DailyLog
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &dayLog); err != nil {
		b.sendMarkdown(chatID, "❌ *Invalid log.* Send `/log <day> {...}` with what you ate as JSON.")
		return
	}
	dayLog.DayIndex = idx

	sent, err := b.sendMarkdown(chatID, "🔎 *Analyzing your day...*")
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	ctx, cancel := b.generationContext()
	defer cancel()

	sess := b.chatSession(chatID)
	adj, err := sess.SubmitLog(ctx, dayLog)
	if err != nil {
		log.Printf("Error analyzing day %d for chat %d: %v", idx, chatID, err)
		b.editMarkdown(chatID, sent.MessageID, formatError("analyzing your day", err))
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, formatAnalysis(idx, adj))
	edit.ParseMode = tgbotapi.ModeMarkdown
	keyboard := analysisKeyboard(idx, adj)
	edit.ReplyMarkup = &keyboard
	b.api.Send(edit)
}

func (b *Bot) handleShowAnalysis(chatID int64) {
	eng, err := b.chatSession(chatID).Engine()
	if err != nil {
		b.sendMarkdown(chatID, formatError("loading analysis", err))
		return
	}
	adj, ok := eng.PendingAnalysis()
	if !ok {
		b.sendMarkdown(chatID, "🤷 No pending analysis. Log a day with `/log <day> {...}`.")
		return
	}
	b.sendMarkdown(chatID, formatPendingAnalysis(adj))
}

func (b *Bot) handleDismiss(chatID int64) {
	if err := b.chatSession(chatID).DismissAnalysis(); err != nil {
		b.sendMarkdown(chatID, formatError("dismissing analysis", err))
		return
	}
	b.sendMarkdown(chatID, "👍 Analysis dismissed.")
}

// handleCallbackQuery serves the inline buttons under an analysis:
// "dismiss" and "day|<index>".
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	action, arg, _ := strings.Cut(query.Data, "|")
	switch action {
	case "dismiss":
		b.handleDismiss(chatID)
	case "day":
		idx, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		b.handleShowDay(chatID, strconv.Itoa(idx+1))
	}
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.ID != b.cfg.AdminTelegramID {
		b.sendMarkdown(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	b.handleMetricsCommand(msg.Chat.ID)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	if b.metricsStore == nil {
		b.sendMarkdown(chatID, "❌ Metrics are not enabled.")
		return
	}
	ctx := context.Background()
	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		log.Printf("Error fetching daily usage: %v", err)
		b.sendMarkdown(chatID, "❌ Error fetching metrics.")
		return
	}
	agents, err := b.metricsStore.GetAgentUsage(ctx)
	if err != nil {
		log.Printf("Error fetching agent usage: %v", err)
		b.sendMarkdown(chatID, "❌ Error fetching metrics.")
		return
	}

	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath), b.sessions.Len())
	b.sendMarkdown(chatID, formatMetrics(usage, agents, health))
}

// RecordMeta stores usage and alerts the admin when a prompt grows too large.
func (b *Bot) RecordMeta(meta shared.AgentMeta) error {
	if meta.Usage.PromptTokens > contextBloatTokens {
		alert := fmt.Sprintf("⚠️ *Context Bloat Alert*\nAgent: %s\nModel: %s\nPrompt Tokens: %d",
			meta.AgentName, tgbotapi.EscapeText(tgbotapi.ModeMarkdown, meta.Usage.Model), meta.Usage.PromptTokens)
		b.sendAdminAlert(alert)
	}
	if b.metricsStore == nil {
		return nil
	}
	return b.metricsStore.RecordMeta(meta)
}

func (b *Bot) currentPlan(chatID int64) (planner.WeeklyPlan, bool) {
	eng, err := b.chatSession(chatID).Engine()
	if err != nil {
		b.sendMarkdown(chatID, formatError("loading plan", err))
		return planner.WeeklyPlan{}, false
	}
	plan, ok := eng.Plan()
	if !ok {
		b.sendMarkdown(chatID, formatError("loading plan", engine.ErrNoPlan))
		return planner.WeeklyPlan{}, false
	}
	return plan, true
}

// parseDayNumber reads a 1-based day number and returns its index.
func (b *Bot) parseDayNumber(chatID int64, arg string, days int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > days {
		b.sendMarkdown(chatID, fmt.Sprintf("❌ Day must be a number from 1 to %d.", days))
		return 0, false
	}
	return n - 1, true
}

func (b *Bot) generationContext() (context.Context, context.CancelFunc) {
	if b.cfg.GenerationTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), b.cfg.GenerationTimeout)
}

func (b *Bot) sendMarkdown(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
	}
	return sent, err
}

func (b *Bot) editMarkdown(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to edit message in chat %d: %v", chatID, err)
	}
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.sendMarkdown(b.cfg.AdminTelegramID, text)
}

func analysisKeyboard(dayIndex int, adj planner.AdjustmentResult) tgbotapi.InlineKeyboardMarkup {
	row := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Dismiss", "dismiss"))
	if _, ok := adj.Revision(); ok && dayIndex+1 < planner.DaysPerWeek {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("📅 Show day %d", dayIndex+2), fmt.Sprintf("day|%d", dayIndex+1)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// userMessage is the chat wording for each failure kind.
func userMessage(err error) string {
	var verr *profile.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]string, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = f.Field + " " + f.Problem
		}
		return "Your profile is incomplete: " + strings.Join(fields, ", ")
	case errors.Is(err, planner.ErrGenerationUnavailable):
		return "The meal planner is not configured. Ask the admin to set an API key."
	case errors.Is(err, engine.ErrAnalysisInProgress), errors.Is(err, engine.ErrGenerationInProgress):
		return "I'm still working on your last request. Please wait for it to finish."
	case errors.Is(err, engine.ErrNoPlan):
		return "You don't have a plan yet. Send /profile first."
	case errors.Is(err, session.ErrNoProfile):
		return "No profile yet. Send /profile first."
	case errors.Is(err, context.DeadlineExceeded):
		return "The planner took too long to answer. Please try again."
	default:
		return err.Error()
	}
}
