package pulse

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"tg-pulse-bot/internal/domain"
)

// OverviewView — сводка сообщества для команды /pulse.
type OverviewView struct {
	GeneratedAt   time.Time
	ScanDays      int
	TrendDays     int
	TotalUsers    int
	TotalMessages int
	TotalRawCP    float64
	ActiveUsers7d int
	Scope         domain.ScanScope
	Degraded      []domain.SourceStatus
	Categories    []domain.CategoryTotal
	Trend         []TrendPoint
	Top           []*domain.UserStats
}

// TrendPoint — одна точка дневного тренда.
type TrendPoint struct {
	Day         time.Time
	CP          float64
	Messages    int
	ActiveUsers int
}

// GovernanceView — распределение голосующей силы сообщества.
type GovernanceView struct {
	VPCounts map[int]int
	TotalVP  int
	TopShare float64
	Top      []*domain.UserStats
}

// BuildOverview собирает сводку по снапшоту.
func BuildOverview(snap *domain.Snapshot, topLimit int) OverviewView {
	view := OverviewView{
		GeneratedAt: snap.GeneratedAt,
		ScanDays:    snap.ScanDays,
		TrendDays:   snap.TrendDays,
		TotalUsers:  len(snap.Users),
		Scope:       snap.Scope,
		Top:         LeaderboardRows(snap, topLimit),
	}
	for _, status := range snap.Sources {
		if !status.OK {
			view.Degraded = append(view.Degraded, status)
		}
	}
	for _, category := range domain.CategoryOrder {
		if total, ok := snap.CategoryTotals[category]; ok {
			view.TotalMessages += total.Count
			view.TotalRawCP += total.RawCP
			view.Categories = append(view.Categories, *total)
		}
	}

	today := dayOf(snap.GeneratedAt)
	week := today.AddDate(0, 0, -6)
	for _, user := range snap.Users {
		for day := range user.ActivityDays {
			if !day.Before(week) {
				view.ActiveUsers7d++
				break
			}
		}
	}

	days := snap.TrendDays
	if days > 14 {
		days = 14
	}
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		view.Trend = append(view.Trend, TrendPoint{
			Day:         day,
			CP:          snap.DailyCP[day],
			Messages:    snap.DailyMessages[day],
			ActiveUsers: snap.DailyActive[day],
		})
	}
	return view
}

// LeaderboardRows возвращает первые limit строк 30-дневного рейтинга.
func LeaderboardRows(snap *domain.Snapshot, limit int) []*domain.UserStats {
	if limit < 1 {
		limit = 1
	}
	if limit > len(snap.Ranked30d) {
		limit = len(snap.Ranked30d)
	}
	return snap.Ranked30d[:limit]
}

// ResolveUser находит участника по селектору: числовой id, точное имя без
// учёта регистра, частичное совпадение с наибольшими эффективными CP за
// 30 дней; при пустом селекторе или отсутствии совпадений — лидер рейтинга.
func ResolveUser(snap *domain.Snapshot, selector string) *domain.UserStats {
	selector = strings.TrimSpace(selector)
	if selector != "" {
		if id, err := strconv.ParseInt(selector, 10, 64); err == nil {
			if user, ok := snap.Users[id]; ok {
				return user
			}
		}
		lowered := strings.ToLower(selector)
		for _, user := range snap.Ranked30d {
			if strings.ToLower(user.Name) == lowered {
				return user
			}
		}
		var best *domain.UserStats
		for _, user := range snap.Ranked30d {
			if strings.Contains(strings.ToLower(user.Name), lowered) {
				if best == nil || user.EffectiveCP30d > best.EffectiveCP30d {
					best = user
				}
			}
		}
		if best != nil {
			return best
		}
	}
	if len(snap.Ranked30d) > 0 {
		return snap.Ranked30d[0]
	}
	return nil
}

// ChannelRows возвращает первые limit строк статистики каналов.
func ChannelRows(snap *domain.Snapshot, limit int) []domain.ChannelRow {
	if limit < 1 {
		limit = 1
	}
	if limit > len(snap.Channels) {
		limit = len(snap.Channels)
	}
	return snap.Channels[:limit]
}

// CategoryBoards возвращает усечённые лидерборды рубрик в фиксированном
// порядке рубрик.
func CategoryBoards(snap *domain.Snapshot, limit int) []CategoryBoard {
	if limit < 1 {
		limit = 1
	}
	boards := make([]CategoryBoard, 0, len(domain.CategoryOrder))
	for _, category := range domain.CategoryOrder {
		entries := snap.CategoryLeaders[category]
		if len(entries) > limit {
			entries = entries[:limit]
		}
		boards = append(boards, CategoryBoard{Category: category, Entries: entries})
	}
	return boards
}

// CategoryBoard — лидерборд одной рубрики.
type CategoryBoard struct {
	Category domain.Category
	Entries  []domain.CategoryEntry
}

// BuildGovernance собирает распределение VP и долю концентрации силы
// первых limit участников.
func BuildGovernance(snap *domain.Snapshot, limit int) GovernanceView {
	view := GovernanceView{VPCounts: map[int]int{}}
	totalEff := 0.0
	for _, user := range snap.Users {
		view.VPCounts[user.EffectiveVP]++
		view.TotalVP += user.EffectiveVP
		totalEff += user.EffectiveCPTotal
	}

	top := make([]*domain.UserStats, 0, len(snap.RankedTotal))
	top = append(top, snap.RankedTotal...)
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].EffectiveVP != top[j].EffectiveVP {
			return top[i].EffectiveVP > top[j].EffectiveVP
		}
		return top[i].RankTotal < top[j].RankTotal
	})
	if limit < 1 {
		limit = 1
	}
	if limit > len(top) {
		limit = len(top)
	}
	view.Top = top[:limit]

	if totalEff > 0 {
		topEff := 0.0
		for _, user := range view.Top {
			topEff += user.EffectiveCPTotal
		}
		view.TopShare = topEff / totalEff
	}
	return view
}
