package telegram

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitMessageLongLeaderboard(t *testing.T) {
	var builder strings.Builder
	builder.WriteString("<b>Лидерборд за 30 дней</b>\n")
	for i := 1; i <= 400; i++ {
		fmt.Fprintf(&builder, "%d. user-%d — %d.0 CP\n", i, i, 400-i)
	}

	parts := SplitMessage(builder.String())
	if len(parts) < 2 {
		t.Fatalf("ожидалось несколько частей, получено %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > messageLimit {
			t.Fatalf("часть %d превышает лимит: %d", i, length)
		}
		if strings.HasPrefix(part, "\n") || strings.HasSuffix(part, "\n") {
			t.Fatalf("часть %d не обрезана по переводам строк", i)
		}
	}
	joined := strings.Join(parts, "\n")
	if !strings.Contains(joined, "user-400") {
		t.Fatal("хвост текста потерян при разрезании")
	}
}

func TestSplitMessageShortText(t *testing.T) {
	text := "Пульс сообщества"
	parts := SplitMessage(text)
	if len(parts) != 1 {
		t.Fatalf("ожидалась одна часть, получено %d", len(parts))
	}
	if parts[0] != text {
		t.Fatalf("неожиданный текст: %q", parts[0])
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("для пустого текста частей быть не должно, получено %d", len(parts))
	}
}
