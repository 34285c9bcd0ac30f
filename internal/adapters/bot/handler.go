package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-pulse-bot/internal/adapters/telegram"
	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/metrics"
	"tg-pulse-bot/internal/usecase/pulse"
	"tg-pulse-bot/internal/usecase/refresh"
)

// Handler обслуживает вебхук бота аналитики.
type Handler struct {
	bot     *tgbotapi.BotAPI
	log     zerolog.Logger
	refresh *refresh.Service
	ops     domain.OpsStore
	limit   int
}

// NewHandler создаёт обработчик. limit задаёт размер лидербордов.
func NewHandler(botAPI *tgbotapi.BotAPI, logger zerolog.Logger, refreshUC *refresh.Service, ops domain.OpsStore, limit int) *Handler {
	if limit < 1 {
		limit = 1
	}
	return &Handler{
		bot:     botAPI,
		log:     logger.With().Str("component", "bot").Logger(),
		refresh: refreshUC,
		ops:     ops,
		limit:   limit,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, h.buildStartMessage())
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage())
	case strings.HasPrefix(text, "/pulse"):
		h.handlePulse(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/mystats"):
		h.handleMyStats(ctx, msg.Chat.ID, msg.From, commandPayload(text, "/mystats"))
	case strings.HasPrefix(text, "/leaderboard"):
		h.handleLeaderboard(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/categories"):
		h.handleCategories(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/channels"):
		h.handleChannels(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/heatmap"):
		h.handleHeatmap(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/graph"):
		h.handleGraph(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/governance"):
		h.handleGovernance(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/status"):
		h.handleStatus(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/refresh"):
		h.handleRefresh(ctx, msg.Chat.ID)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help")
	}
}

// commandPayload возвращает аргумент команды без самой команды и упоминания
// бота ("/mystats@bot alice" → "alice").
func commandPayload(text, command string) string {
	payload := strings.TrimPrefix(text, command)
	if strings.HasPrefix(payload, "@") {
		if idx := strings.IndexAny(payload, " \t"); idx >= 0 {
			payload = payload[idx:]
		} else {
			payload = ""
		}
	}
	return strings.TrimSpace(payload)
}

func (h *Handler) snapshot(ctx context.Context) (*domain.Snapshot, error) {
	if snap, ok := h.refresh.Latest(); ok {
		return snap, nil
	}
	return h.refresh.Rebuild(ctx)
}

func (h *Handler) handlePulse(ctx context.Context, chatID int64) {
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.replyBuildError(chatID, err)
		return
	}
	h.reply(chatID, pulse.FormatOverview(pulse.BuildOverview(snap, h.limit)))
}

func (h *Handler) handleMyStats(ctx context.Context, chatID int64, from *tgbotapi.User, selector string) {
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.replyBuildError(chatID, err)
		return
	}
	if selector == "" && from != nil {
		if user, ok := snap.Users[from.ID]; ok {
			h.reply(chatID, pulse.FormatMyStats(user))
			return
		}
		selector = from.UserName
	}
	h.reply(chatID, pulse.FormatMyStats(pulse.ResolveUser(snap, selector)))
}

func (h *Handler) handleLeaderboard(ctx context.Context, chatID int64) {
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.replyBuildError(chatID, err)
		return
	}
	h.reply(chatID, pulse.FormatLeaderboard(pulse.LeaderboardRows(snap, h.limit)))
}

func (h *Handler) handleCategories(ctx context.Context, chatID int64) {
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.replyBuildError(chatID, err)
		return
	}
	h.reply(chatID, pulse.FormatCategories(pulse.CategoryBoards(snap, h.limit)))
}

func (h *Handler) handleChannels(ctx context.Context, chatID int64) {
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.replyBuildError(chatID, err)
		return
	}
	h.reply(chatID, pulse.FormatChannels(pulse.ChannelRows(snap, h.limit)))
}

func (h *Handler) handleHeatmap(ctx context.Context, chatID int64) {
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.replyBuildError(chatID, err)
		return
	}
	h.reply(chatID, pulse.FormatHeatmap(snap))
}

func (h *Handler) handleGraph(ctx context.Context, chatID int64) {
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.replyBuildError(chatID, err)
		return
	}
	h.reply(chatID, pulse.FormatGraph(snap, h.limit))
}

func (h *Handler) handleGovernance(ctx context.Context, chatID int64) {
	snap, err := h.snapshot(ctx)
	if err != nil {
		h.replyBuildError(chatID, err)
		return
	}
	h.reply(chatID, pulse.FormatGovernance(pulse.BuildGovernance(snap, h.limit)))
}

func (h *Handler) handleStatus(ctx context.Context, chatID int64) {
	if h.ops == nil {
		h.reply(chatID, "Проверка хранилища недоступна в этой конфигурации")
		return
	}
	h.reply(chatID, pulse.FormatOperations(h.ops.ProbeTables(ctx)))
}

func (h *Handler) handleRefresh(ctx context.Context, chatID int64) {
	jobID, err := h.refresh.EnqueueRefresh(ctx, domain.RefreshCauseManual, chatID)
	if err != nil {
		if errors.Is(err, refresh.ErrNoQueue) {
			h.reply(chatID, "Очередь пересборки не настроена")
			return
		}
		h.log.Error().Err(err).Msg("не удалось поставить задачу пересборки")
		h.reply(chatID, "Не удалось поставить задачу. Попробуйте позже")
		return
	}
	h.reply(chatID, fmt.Sprintf("Пересборка поставлена в очередь (задача %s)", jobID))
}

func (h *Handler) replyBuildError(chatID int64, err error) {
	h.log.Error().Err(err).Msg("модель недоступна")
	h.reply(chatID, "Модель сейчас недоступна. Попробуйте позже")
}

func (h *Handler) buildStartMessage() string {
	return strings.Join([]string{
		"<b>Пульс сообщества</b>",
		"Бот показывает аналитику активности группы: вклад участников, рубрики, каналы и связи.",
		"",
		"Начните с /pulse или посмотрите /help.",
	}, "\n")
}

func (h *Handler) buildHelpMessage() string {
	return strings.Join([]string{
		"/pulse — сводка сообщества",
		"/mystats [имя или id] — карточка участника",
		"/leaderboard — рейтинг за 30 дней",
		"/categories — лидеры рубрик",
		"/channels — статистика каналов",
		"/heatmap — активность по часам",
		"/graph — социальный граф реакций",
		"/governance — распределение голосующей силы",
		"/status — состояние хранилища",
		"/refresh — пересобрать модель",
	}, "\n")
}

func (h *Handler) reply(chatID int64, text string) {
	parts := telegram.SplitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}
