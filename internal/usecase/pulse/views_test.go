package pulse

import (
	"context"
	"strings"
	"testing"

	"tg-pulse-bot/internal/domain"
)

func buildViewsSnapshot(t *testing.T) *domain.Snapshot {
	t.Helper()
	store := &stubStore{
		messages: []domain.Message{
			msgAt(1, 1, 10, "обычное сообщение средней длины", 1),
			msgAt(2, 1, 10, "обычное сообщение средней длины", 2),
			msgAt(3, 1, 10, "обычное сообщение средней длины", 3),
			msgAt(4, 2, 10, "посмотрите https://example.com", 1),
			msgAt(5, 3, 11, "ок", 1),
		},
		reactions: []domain.Reaction{
			{MessageID: 1, UserID: 2, Weight: 1, CreatedAt: testNow.AddDate(0, 0, -1)},
			{MessageID: 4, UserID: 1, Weight: 1, CreatedAt: testNow.AddDate(0, 0, -1)},
		},
		channels: []domain.ChannelRef{{ChannelID: 10, Name: "general"}, {ChannelID: 11, Name: "dev"}},
		users: []domain.UserRef{
			{UserID: 1, Username: "alice"},
			{UserID: 2, Username: "bob"},
			{UserID: 3, Username: "alicia"},
		},
	}
	svc := newTestService(store, testOptions())
	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	return snap
}

func TestResolveUserByID(t *testing.T) {
	snap := buildViewsSnapshot(t)
	user := ResolveUser(snap, "2")
	if user == nil || user.UserID != 2 {
		t.Fatalf("селектор-число должен находить по id, получено %+v", user)
	}
}

func TestResolveUserExactName(t *testing.T) {
	snap := buildViewsSnapshot(t)
	user := ResolveUser(snap, "ALICE")
	if user == nil || user.UserID != 1 {
		t.Fatalf("точное имя без учёта регистра должно находить участника, получено %+v", user)
	}
}

func TestResolveUserPartialPicksStrongest(t *testing.T) {
	snap := buildViewsSnapshot(t)
	// "ali" совпадает с alice и alicia; alice активнее.
	user := ResolveUser(snap, "ali")
	if user == nil || user.UserID != 1 {
		t.Fatalf("частичное совпадение должно выбирать участника с большими CP, получено %+v", user)
	}
}

func TestResolveUserFallbackTop(t *testing.T) {
	snap := buildViewsSnapshot(t)
	user := ResolveUser(snap, "нет такого")
	if user == nil || user.UserID != snap.Ranked30d[0].UserID {
		t.Fatalf("при отсутствии совпадений должен возвращаться лидер, получено %+v", user)
	}
	if got := ResolveUser(snap, ""); got == nil || got.UserID != snap.Ranked30d[0].UserID {
		t.Fatal("пустой селектор должен возвращать лидера")
	}
}

func TestBuildOverviewTotals(t *testing.T) {
	snap := buildViewsSnapshot(t)
	view := BuildOverview(snap, 10)
	if view.TotalUsers != 3 {
		t.Fatalf("ожидалось 3 участника, получено %d", view.TotalUsers)
	}
	if view.TotalMessages != 5 {
		t.Fatalf("ожидалось 5 сообщений, получено %d", view.TotalMessages)
	}
	if view.ActiveUsers7d != 3 {
		t.Fatalf("все участники активны за неделю, получено %d", view.ActiveUsers7d)
	}
	if len(view.Trend) != 14 {
		t.Fatalf("тренд должен содержать 14 точек, получено %d", len(view.Trend))
	}
	if len(view.Categories) != len(domain.CategoryOrder) {
		t.Fatalf("в сводке должны быть все рубрики, получено %d", len(view.Categories))
	}
}

func TestBuildGovernanceShare(t *testing.T) {
	snap := buildViewsSnapshot(t)
	view := BuildGovernance(snap, 1)
	if view.TotalVP < 3 {
		t.Fatalf("суммарный VP минимум по 1 на участника, получено %d", view.TotalVP)
	}
	if view.TopShare <= 0 || view.TopShare > 1 {
		t.Fatalf("доля топа должна лежать в (0, 1], получено %v", view.TopShare)
	}
	if len(view.Top) != 1 {
		t.Fatalf("ожидался один участник в топе, получено %d", len(view.Top))
	}
}

func TestFormatLeaderboardRendersRanks(t *testing.T) {
	snap := buildViewsSnapshot(t)
	text := FormatLeaderboard(LeaderboardRows(snap, 3))
	if !strings.Contains(text, "1. ") {
		t.Fatalf("рейтинг должен начинаться с первой позиции: %q", text)
	}
	if !strings.Contains(text, "CP") {
		t.Fatalf("в рейтинге должны быть очки: %q", text)
	}
}

func TestFormatMyStatsNil(t *testing.T) {
	if text := FormatMyStats(nil); !strings.Contains(text, "Нет данных") {
		t.Fatalf("для nil должен рендериться текст-заглушка: %q", text)
	}
}

func TestFormatHeatmapEmpty(t *testing.T) {
	snap := &domain.Snapshot{}
	if text := FormatHeatmap(snap); !strings.Contains(text, "пуста") {
		t.Fatalf("пустая карта должна давать заглушку: %q", text)
	}
}

func TestFormatGraphRendersEdges(t *testing.T) {
	snap := buildViewsSnapshot(t)
	text := FormatGraph(snap, 5)
	if !strings.Contains(text, "→") {
		t.Fatalf("в графе должны быть рёбра: %q", text)
	}
}

func TestFormatOperations(t *testing.T) {
	statuses := []domain.TableStatus{
		{Table: "messages", Available: true, Sampled: 1},
		{Table: "members", Err: "нет таблицы"},
	}
	text := FormatOperations(statuses)
	if !strings.Contains(text, "READY messages") {
		t.Fatalf("доступная таблица должна быть READY: %q", text)
	}
	if !strings.Contains(text, "MISSING members") {
		t.Fatalf("недоступная таблица должна быть MISSING: %q", text)
	}
}
