package pulse

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"tg-pulse-bot/internal/domain"
)

const (
	// ReactionGiveCP — очки реактору за одну поставленную реакцию.
	ReactionGiveCP = 1.0
	// DefaultTrust — траст-скор участника без записи в справочнике.
	DefaultTrust = 100.0
	// MaxVP — потолок логарифмической шкалы voting power.
	MaxVP = 6
)

// categoryBaseCP — базовые очки рубрик.
var categoryBaseCP = map[domain.Category]float64{
	domain.CategoryInfo:    5,
	domain.CategoryInsight: 4,
	domain.CategoryVibe:    3,
	domain.CategoryOps:     4,
	domain.CategoryMisc:    1,
}

var (
	urlRe     = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+)`)
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

var (
	opsChannelHints       = []string{"ops", "operation", "運営", "admin", "告知", "schedule", "task", "coord"}
	projectChannelHints   = []string{"開発", "dev", "project", "農業", "本のコモンズ", "build", "tech", "engineer"}
	knowledgeChannelHints = []string{"学び", "learn", "study", "knowledge", "記事", "share", "news", "paper"}
	hobbyChannelHints     = []string{"ゲーム", "game", "音楽", "music", "hobby", "movie", "anime"}
)

func containsAny(text string, hints []string) bool {
	lowered := strings.ToLower(text)
	for _, hint := range hints {
		if strings.Contains(lowered, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

// ChannelWeight возвращает коэффициент канала: 1.2 для проектных и
// образовательных каналов, 0.8 для развлекательных, иначе 1.0.
func ChannelWeight(channelName string) float64 {
	if containsAny(channelName, projectChannelHints) || containsAny(channelName, knowledgeChannelHints) {
		return 1.2
	}
	if containsAny(channelName, hobbyChannelHints) {
		return 0.8
	}
	return 1.0
}

// Classify определяет рубрику сообщения. Порядок правил фиксирован:
// пустой текст, ссылка, операционный канал, короткий текст, длинный текст.
func Classify(text, channelName string) domain.Category {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.CategoryMisc
	}
	if urlRe.MatchString(trimmed) {
		return domain.CategoryInfo
	}
	if containsAny(channelName, opsChannelHints) {
		return domain.CategoryOps
	}
	meaningful := nonWordRe.ReplaceAllString(trimmed, "")
	if utf8.RuneCountInString(meaningful) < 5 {
		return domain.CategoryVibe
	}
	if utf8.RuneCountInString(trimmed) > 200 {
		return domain.CategoryInsight
	}
	return domain.CategoryMisc
}

// BaseCP возвращает базовые очки рубрики.
func BaseCP(category domain.Category) float64 {
	if cp, ok := categoryBaseCP[category]; ok {
		return cp
	}
	return categoryBaseCP[domain.CategoryMisc]
}

// MessageCP — вклад сообщения: базовые очки рубрики на коэффициент канала.
func MessageCP(category domain.Category, channelName string) float64 {
	return BaseCP(category) * ChannelWeight(channelName)
}
