package pulse

import (
	"fmt"
	"html"
	"strings"

	"tg-pulse-bot/internal/domain"
)

// heatRamp — шкала интенсивности для текстовой тепловой карты.
const heatRamp = " .:-=+*#%@"

var weekdayLabels = [7]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// FormatOverview рендерит сводку сообщества в HTML для Telegram.
func FormatOverview(view OverviewView) string {
	var b strings.Builder
	b.WriteString("<b>Пульс сообщества</b>\n")
	fmt.Fprintf(&b, "Окно: %d дн., тренд: %d дн.\n", view.ScanDays, view.TrendDays)
	fmt.Fprintf(&b, "Участников: %d, сообщений: %d, CP: %.1f\n", view.TotalUsers, view.TotalMessages, view.TotalRawCP)
	fmt.Fprintf(&b, "Активны за 7 дней: %d\n", view.ActiveUsers7d)
	if view.Scope.MessagesTruncated || view.Scope.ReactionsTruncated || view.Scope.UsersTruncated {
		b.WriteString("⚠️ Окно усечено лимитами, модель частичная\n")
	}
	for _, status := range view.Degraded {
		fmt.Fprintf(&b, "⚠️ Источник %s недоступен\n", status.Source)
	}

	b.WriteString("\n<b>Рубрики</b>\n")
	for _, total := range view.Categories {
		fmt.Fprintf(&b, "%s: %d сообщ., %.1f CP (30д: %.1f)\n", total.Category, total.Count, total.RawCP, total.RawCP30d)
	}

	if len(view.Trend) > 0 {
		b.WriteString("\n<b>Тренд CP</b>\n")
		maxCP := 0.0
		for _, point := range view.Trend {
			if point.CP > maxCP {
				maxCP = point.CP
			}
		}
		for _, point := range view.Trend {
			fmt.Fprintf(&b, "%s %s %.1f\n", point.Day.Format("01-02"), trendBar(point.CP, maxCP), point.CP)
		}
	}

	if len(view.Top) > 0 {
		b.WriteString("\n<b>Топ за 30 дней</b>\n")
		for _, user := range view.Top {
			fmt.Fprintf(&b, "%d. %s — %.1f CP\n", user.Rank30d, html.EscapeString(user.Name), user.EffectiveCP30d)
		}
	}
	return b.String()
}

func trendBar(value, max float64) string {
	const width = 16
	if max <= 0 {
		return ""
	}
	n := int(value / max * width)
	if n < 1 && value > 0 {
		n = 1
	}
	return strings.Repeat("▇", n)
}

// FormatMyStats рендерит карточку участника.
func FormatMyStats(user *domain.UserStats) string {
	if user == nil {
		return "Нет данных об участниках за окно сканирования."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> (id %d)\n", html.EscapeString(user.Name), user.UserID)
	fmt.Fprintf(&b, "Ранг: #%d за 30 дней, #%d за всё окно\n", user.Rank30d, user.RankTotal)
	fmt.Fprintf(&b, "CP: %.1f эфф. (%.1f сырых), 30д: %.1f эфф. (%.1f)\n",
		user.EffectiveCPTotal, user.RawCPTotal, user.EffectiveCP30d, user.RawCP30d)
	fmt.Fprintf(&b, "Траст: %.1f, VP: %d, эфф. VP: %d\n", user.Trust, user.VP, user.EffectiveVP)
	fmt.Fprintf(&b, "Сообщений: %d (30д: %d), реакций: %d (30д: %d)\n",
		user.MsgCountTotal, user.MsgCount30d, user.ReactionsGivenTotal, user.ReactionsGiven30d)
	fmt.Fprintf(&b, "Стрик: %d дн. (рекорд %d)\n", user.CurrentStreak, user.LongestStreak)
	b.WriteString("\n<b>По рубрикам</b>\n")
	for _, category := range domain.CategoryOrder {
		count := user.CategoryCounts[category]
		if count == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: %d сообщ., %.1f CP\n", category, count, user.CategoryCP[category])
	}
	return b.String()
}

// FormatLeaderboard рендерит 30-дневный рейтинг.
func FormatLeaderboard(rows []*domain.UserStats) string {
	if len(rows) == 0 {
		return "Рейтинг пуст: за окно сканирования не было активности."
	}
	var b strings.Builder
	b.WriteString("<b>Лидерборд за 30 дней</b>\n")
	for _, user := range rows {
		fmt.Fprintf(&b, "%d. %s — %.1f CP (сырых %.1f), VP %d\n",
			user.Rank30d, html.EscapeString(user.Name), user.EffectiveCP30d, user.RawCP30d, user.EffectiveVP)
	}
	return b.String()
}

// FormatCategories рендерит лидерборды рубрик.
func FormatCategories(boards []CategoryBoard) string {
	var b strings.Builder
	b.WriteString("<b>Лидеры рубрик</b>\n")
	for _, board := range boards {
		fmt.Fprintf(&b, "\n<b>%s</b>\n", board.Category)
		if len(board.Entries) == 0 {
			b.WriteString("—\n")
			continue
		}
		for i, entry := range board.Entries {
			fmt.Fprintf(&b, "%d. %s — %d сообщ., %.1f CP за 30д\n",
				i+1, html.EscapeString(entry.Name), entry.Count, entry.CP30d)
		}
	}
	return b.String()
}

// FormatChannels рендерит статистику каналов.
func FormatChannels(rows []domain.ChannelRow) string {
	if len(rows) == 0 {
		return "Нет данных по каналам за окно сканирования."
	}
	var b strings.Builder
	b.WriteString("<b>Каналы за 30 дней</b>\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%s (×%.1f): %d сообщ., %.1f CP, активных %d, чемпион %s (%.1f)\n",
			html.EscapeString(row.Name), row.Weight, row.Messages30d, row.RawCP30d,
			row.ActiveUsers, html.EscapeString(row.ChampionName), row.ChampionCP)
	}
	return b.String()
}

// FormatHeatmap рендерит тепловую карту активности по дням недели и часам.
func FormatHeatmap(snap *domain.Snapshot) string {
	maxCount := 0
	for wd := 0; wd < 7; wd++ {
		for hour := 0; hour < 24; hour++ {
			if snap.HeatmapMessages[wd][hour] > maxCount {
				maxCount = snap.HeatmapMessages[wd][hour]
			}
		}
	}
	if maxCount == 0 {
		return "Тепловая карта пуста: нет сообщений в окне тренда."
	}
	var b strings.Builder
	b.WriteString("<b>Активность по часам (UTC)</b>\n<pre>")
	b.WriteString("   0    6    12   18\n")
	ramp := []rune(heatRamp)
	for wd := 0; wd < 7; wd++ {
		b.WriteString(weekdayLabels[wd])
		b.WriteString(" ")
		for hour := 0; hour < 24; hour++ {
			level := snap.HeatmapMessages[wd][hour] * (len(ramp) - 1) / maxCount
			b.WriteRune(ramp[level])
		}
		b.WriteString("\n")
	}
	b.WriteString("</pre>")
	return b.String()
}

// FormatGraph рендерит верх социального графа реакций.
func FormatGraph(snap *domain.Snapshot, limit int) string {
	if len(snap.TopEdges) == 0 {
		return "Граф пуст: в окне не было реакций на чужие сообщения."
	}
	if limit < 1 {
		limit = 1
	}
	var b strings.Builder
	b.WriteString("<b>Связи сообщества</b>\n")
	edges := snap.TopEdges
	if len(edges) > limit {
		edges = edges[:limit]
	}
	for _, edge := range edges {
		fmt.Fprintf(&b, "%s → %s: %.0f\n",
			html.EscapeString(snapshotName(snap, edge.Source)),
			html.EscapeString(snapshotName(snap, edge.Target)), edge.Weight)
	}
	b.WriteString("\n<b>Центры притяжения</b>\n")
	nodes := snap.TopNodes
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}
	for i, node := range nodes {
		fmt.Fprintf(&b, "%d. %s — степень %.0f\n", i+1, html.EscapeString(node.Name), node.Degree)
	}
	return b.String()
}

// FormatGovernance рендерит распределение голосующей силы.
func FormatGovernance(view GovernanceView) string {
	var b strings.Builder
	b.WriteString("<b>Голосующая сила</b>\n")
	fmt.Fprintf(&b, "Суммарный VP: %d\n", view.TotalVP)
	fmt.Fprintf(&b, "Доля топа: %.1f%%\n", view.TopShare*100)
	b.WriteString("\n<b>Распределение VP</b>\n")
	for vp := MaxVP; vp >= 1; vp-- {
		count := view.VPCounts[vp]
		if count == 0 {
			continue
		}
		fmt.Fprintf(&b, "VP %d: %d участников\n", vp, count)
	}
	b.WriteString("\n<b>Топ по VP</b>\n")
	for i, user := range view.Top {
		fmt.Fprintf(&b, "%d. %s — VP %d, %.1f CP\n", i+1, html.EscapeString(user.Name), user.EffectiveVP, user.EffectiveCPTotal)
	}
	return b.String()
}

// FormatOperations рендерит статус таблиц хранилища.
func FormatOperations(statuses []domain.TableStatus) string {
	var b strings.Builder
	b.WriteString("<b>Состояние хранилища</b>\n")
	for _, status := range statuses {
		mark := "✅ READY"
		if !status.Available {
			mark = "❌ MISSING"
		}
		fmt.Fprintf(&b, "%s %s", mark, status.Table)
		if status.Err != "" {
			fmt.Fprintf(&b, " (%s)", html.EscapeString(status.Err))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func snapshotName(snap *domain.Snapshot, userID int64) string {
	if user, ok := snap.Users[userID]; ok {
		return user.Name
	}
	return fmt.Sprintf("user-%d", userID)
}
