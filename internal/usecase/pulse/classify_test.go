package pulse

import (
	"strings"
	"testing"

	"tg-pulse-bot/internal/domain"
)

func TestClassifyEmptyText(t *testing.T) {
	if got := Classify("   ", "general"); got != domain.CategoryMisc {
		t.Fatalf("пустой текст должен давать MISC, получено %s", got)
	}
}

func TestClassifyURL(t *testing.T) {
	if got := Classify("посмотрите https://example.com/post", "general"); got != domain.CategoryInfo {
		t.Fatalf("ссылка должна давать INFO, получено %s", got)
	}
	if got := Classify("see www.example.com", "general"); got != domain.CategoryInfo {
		t.Fatalf("www-ссылка должна давать INFO, получено %s", got)
	}
}

func TestClassifyOpsChannel(t *testing.T) {
	if got := Classify("завтра собрание в 19:00", "ops-announcements"); got != domain.CategoryOps {
		t.Fatalf("операционный канал должен давать OPS, получено %s", got)
	}
	if got := Classify("告知です", "運営"); got != domain.CategoryOps {
		t.Fatalf("японское имя операционного канала должно давать OPS, получено %s", got)
	}
}

func TestClassifyShortText(t *testing.T) {
	if got := Classify("ок!", "general"); got != domain.CategoryVibe {
		t.Fatalf("короткий текст должен давать VIBE, получено %s", got)
	}
	if got := Classify("👍👍👍", "general"); got != domain.CategoryVibe {
		t.Fatalf("одни эмодзи должны давать VIBE, получено %s", got)
	}
}

func TestClassifyLongText(t *testing.T) {
	long := strings.Repeat("я", 201)
	if got := Classify(long, "general"); got != domain.CategoryInsight {
		t.Fatalf("длинный текст должен давать INSIGHT, получено %s", got)
	}
}

func TestClassifyDefault(t *testing.T) {
	if got := Classify("обычное сообщение средней длины", "general"); got != domain.CategoryMisc {
		t.Fatalf("обычный текст должен давать MISC, получено %s", got)
	}
}

// Порядок правил: ссылка выигрывает у операционного канала, операционный
// канал — у короткого текста.
func TestClassifyPriority(t *testing.T) {
	if got := Classify("https://example.com", "ops"); got != domain.CategoryInfo {
		t.Fatalf("ссылка в операционном канале должна давать INFO, получено %s", got)
	}
	if got := Classify("ок", "ops"); got != domain.CategoryOps {
		t.Fatalf("короткий текст в операционном канале должен давать OPS, получено %s", got)
	}
	long := strings.Repeat("a", 250) + " https://example.com"
	if got := Classify(long, "general"); got != domain.CategoryInfo {
		t.Fatalf("ссылка выигрывает у длинного текста, получено %s", got)
	}
}

func TestChannelWeight(t *testing.T) {
	if got := ChannelWeight("dev-backend"); got != 1.2 {
		t.Fatalf("проектный канал должен давать 1.2, получено %v", got)
	}
	if got := ChannelWeight("学び-чат"); got != 1.2 {
		t.Fatalf("образовательный канал должен давать 1.2, получено %v", got)
	}
	if got := ChannelWeight("music-room"); got != 0.8 {
		t.Fatalf("развлекательный канал должен давать 0.8, получено %v", got)
	}
	if got := ChannelWeight("random"); got != 1.0 {
		t.Fatalf("обычный канал должен давать 1.0, получено %v", got)
	}
}

func TestMessageCP(t *testing.T) {
	if got := MessageCP(domain.CategoryInfo, "dev"); got != 6 {
		t.Fatalf("INFO в проектном канале: ожидалось 6, получено %v", got)
	}
	if got := MessageCP(domain.CategoryMisc, "random"); got != 1 {
		t.Fatalf("MISC в обычном канале: ожидалось 1, получено %v", got)
	}
}
