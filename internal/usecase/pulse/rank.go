package pulse

import (
	"sort"
	"time"

	"tg-pulse-bot/internal/domain"
)

const (
	topEdgesLimit = 50
	topNodesLimit = 30
)

// snapshot собирает итоговую модель из аккумулятора: двойное ранжирование,
// строки каналов с чемпионами, лидерборды рубрик и срез графа.
func (a *accumulator) snapshot(w *window, generatedAt time.Time) *domain.Snapshot {
	ranked30 := make([]*domain.UserStats, 0, len(a.users))
	for _, user := range a.users {
		ranked30 = append(ranked30, user)
	}
	rankedTotal := append([]*domain.UserStats(nil), ranked30...)

	sort.Slice(ranked30, func(i, j int) bool {
		return lessByScore(ranked30[i].EffectiveCP30d, ranked30[j].EffectiveCP30d,
			ranked30[i].RawCP30d, ranked30[j].RawCP30d,
			ranked30[i].UserID, ranked30[j].UserID)
	})
	for i, user := range ranked30 {
		user.Rank30d = i + 1
	}

	sort.Slice(rankedTotal, func(i, j int) bool {
		return lessByScore(rankedTotal[i].EffectiveCPTotal, rankedTotal[j].EffectiveCPTotal,
			rankedTotal[i].RawCPTotal, rankedTotal[j].RawCPTotal,
			rankedTotal[i].UserID, rankedTotal[j].UserID)
	})
	for i, user := range rankedTotal {
		user.RankTotal = i + 1
	}

	snap := &domain.Snapshot{
		GeneratedAt:     generatedAt,
		ScanDays:        w.scanDays,
		ScanSince:       w.since,
		TrendDays:       w.trendDays,
		Scope:           w.scope,
		Sources:         w.sources,
		Users:           a.users,
		Ranked30d:       ranked30,
		RankedTotal:     rankedTotal,
		CategoryTotals:  a.categoryTotals,
		CategoryLeaders: a.categoryLeaders(),
		Channels:        a.channelRows(),
		DailyCP:         a.dailyCP,
		DailyMessages:   a.dailyMsgs,
		DailyActive:     map[time.Time]int{},
		HeatmapMessages: a.heatmapMsgs,
		HeatmapCP:       a.heatmapCP,
	}
	for day, set := range a.dailyActive {
		snap.DailyActive[day] = len(set)
	}
	snap.TopEdges, snap.TopNodes = a.graphTop()
	return snap
}

// lessByScore упорядочивает по эффективным CP, затем по сырым, затем по id,
// чтобы равные участники ранжировались детерминированно.
func lessByScore(effI, effJ, rawI, rawJ float64, idI, idJ int64) bool {
	if effI != effJ {
		return effI > effJ
	}
	if rawI != rawJ {
		return rawI > rawJ
	}
	return idI < idJ
}

func (a *accumulator) channelRows() []domain.ChannelRow {
	rows := make([]domain.ChannelRow, 0, len(a.channels))
	for id, ch := range a.channels {
		row := domain.ChannelRow{
			ChannelID:    id,
			Name:         ch.name,
			Weight:       ch.weight,
			Messages30d:  ch.messages30d,
			RawCP30d:     ch.rawCP30d,
			ActiveUsers:  len(ch.activeUsers),
			ChampionName: "-",
		}
		for userID, cp := range ch.userCP {
			if cp > row.ChampionCP || (cp == row.ChampionCP && row.ChampionID != 0 && userID < row.ChampionID) {
				row.ChampionID = userID
				row.ChampionCP = cp
			}
		}
		if row.ChampionID != 0 {
			if user, ok := a.users[row.ChampionID]; ok {
				row.ChampionName = user.Name
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RawCP30d != rows[j].RawCP30d {
			return rows[i].RawCP30d > rows[j].RawCP30d
		}
		return rows[i].ChannelID < rows[j].ChannelID
	})
	return rows
}

// categoryLeaders строит лидерборды рубрик: количество за всё окно,
// очки за 30 дней; нулевые записи отбрасываются.
func (a *accumulator) categoryLeaders() map[domain.Category][]domain.CategoryEntry {
	leaders := make(map[domain.Category][]domain.CategoryEntry, len(domain.CategoryOrder))
	for _, category := range domain.CategoryOrder {
		entries := make([]domain.CategoryEntry, 0)
		for _, user := range a.users {
			count := user.CategoryCounts[category]
			cp30 := user.CategoryCP30d[category]
			if count <= 0 && cp30 <= 0 {
				continue
			}
			entries = append(entries, domain.CategoryEntry{
				UserID: user.UserID,
				Name:   user.Name,
				Count:  count,
				CP30d:  cp30,
			})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].CP30d != entries[j].CP30d {
				return entries[i].CP30d > entries[j].CP30d
			}
			if entries[i].Count != entries[j].Count {
				return entries[i].Count > entries[j].Count
			}
			return entries[i].UserID < entries[j].UserID
		})
		leaders[category] = entries
	}
	return leaders
}

// graphTop возвращает самые тяжёлые рёбра и узлы с наибольшей взвешенной
// степенью (сумма весов входящих и исходящих рёбер).
func (a *accumulator) graphTop() ([]domain.GraphEdge, []domain.GraphNode) {
	edges := make([]domain.GraphEdge, 0, len(a.edges))
	degree := map[int64]float64{}
	for key, weight := range a.edges {
		edges = append(edges, domain.GraphEdge{Source: key.source, Target: key.target, Weight: weight})
		degree[key.source] += weight
		degree[key.target] += weight
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	if len(edges) > topEdgesLimit {
		edges = edges[:topEdgesLimit]
	}

	nodes := make([]domain.GraphNode, 0, len(degree))
	for userID, deg := range degree {
		name := a.names[userID]
		if user, ok := a.users[userID]; ok {
			name = user.Name
		}
		nodes = append(nodes, domain.GraphNode{UserID: userID, Name: name, Degree: deg})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Degree != nodes[j].Degree {
			return nodes[i].Degree > nodes[j].Degree
		}
		return nodes[i].UserID < nodes[j].UserID
	})
	if len(nodes) > topNodesLimit {
		nodes = nodes[:topNodesLimit]
	}
	return edges, nodes
}
