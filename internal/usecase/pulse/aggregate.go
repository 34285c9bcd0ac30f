package pulse

import (
	"fmt"
	"time"

	"tg-pulse-bot/internal/domain"
)

type edgeKey struct {
	source int64
	target int64
}

type channelAccum struct {
	name        string
	weight      float64
	messages30d int
	rawCP30d    float64
	activeUsers map[int64]struct{}
	userCP      map[int64]float64
}

// accumulator — состояние коммутативной свёртки событий окна. Порядок
// подачи сообщений и реакций не влияет на результат.
type accumulator struct {
	day30      time.Time
	trendStart time.Time

	names        map[int64]string
	trust        map[int64]float64
	channelNames map[int64]string

	users          map[int64]*domain.UserStats
	messageOwner   map[int64]int64
	channels       map[int64]*channelAccum
	categoryTotals map[domain.Category]*domain.CategoryTotal

	dailyCP     map[time.Time]float64
	dailyMsgs   map[time.Time]int
	dailyActive map[time.Time]map[int64]struct{}

	heatmapMsgs [7][24]int
	heatmapCP   [7][24]float64

	edges map[edgeKey]float64
}

func newAccumulator(now time.Time, w *window) *accumulator {
	acc := &accumulator{
		day30:          dayOf(now).AddDate(0, 0, -30),
		trendStart:     dayOf(now).AddDate(0, 0, -(w.trendDays - 1)),
		names:          w.names,
		trust:          w.trust,
		channelNames:   w.channels,
		users:          map[int64]*domain.UserStats{},
		messageOwner:   map[int64]int64{},
		channels:       map[int64]*channelAccum{},
		categoryTotals: map[domain.Category]*domain.CategoryTotal{},
		dailyCP:        map[time.Time]float64{},
		dailyMsgs:      map[time.Time]int{},
		dailyActive:    map[time.Time]map[int64]struct{}{},
		edges:          map[edgeKey]float64{},
	}
	for _, category := range domain.CategoryOrder {
		acc.categoryTotals[category] = &domain.CategoryTotal{Category: category}
	}
	return acc
}

// ensureUser возвращает агрегат участника, создавая его с явным нулевым
// состоянием каждой корзины. Это единственная точка создания агрегата.
func (a *accumulator) ensureUser(id int64) *domain.UserStats {
	if user, ok := a.users[id]; ok {
		return user
	}
	name := a.names[id]
	if name == "" {
		name = fmt.Sprintf("user-%d", id)
	}
	trust, ok := a.trust[id]
	if !ok {
		trust = DefaultTrust
	}
	user := &domain.UserStats{
		UserID:         id,
		Name:           name,
		Trust:          trust,
		CategoryCounts: map[domain.Category]int{},
		CategoryCP:     map[domain.Category]float64{},
		CategoryCP30d:  map[domain.Category]float64{},
		DailyCP:        map[time.Time]float64{},
		ActivityDays:   map[time.Time]struct{}{},
	}
	for _, category := range domain.CategoryOrder {
		user.CategoryCounts[category] = 0
		user.CategoryCP[category] = 0
		user.CategoryCP30d[category] = 0
	}
	a.users[id] = user
	return user
}

func (a *accumulator) channelName(id int64) string {
	if name, ok := a.channelNames[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("channel-%d", id)
}

func (a *accumulator) ensureChannel(id int64, name string, weight float64) *channelAccum {
	if ch, ok := a.channels[id]; ok {
		return ch
	}
	ch := &channelAccum{
		name:        name,
		weight:      weight,
		activeUsers: map[int64]struct{}{},
		userCP:      map[int64]float64{},
	}
	a.channels[id] = ch
	return ch
}

func (a *accumulator) activeOn(day time.Time) map[int64]struct{} {
	if set, ok := a.dailyActive[day]; ok {
		return set
	}
	set := map[int64]struct{}{}
	a.dailyActive[day] = set
	return set
}

// addMessage учитывает одно сообщение во всех измерениях модели.
func (a *accumulator) addMessage(msg domain.Message) {
	if msg.ID == 0 || msg.UserID == 0 || msg.Timestamp.IsZero() {
		return
	}
	user := a.ensureUser(msg.UserID)
	day := dayOf(msg.Timestamp)
	chName := a.channelName(msg.ChannelID)
	category := Classify(msg.Text, chName)
	weight := ChannelWeight(chName)
	rawCP := BaseCP(category) * weight

	user.RawCPTotal += rawCP
	user.MsgCountTotal++
	user.CategoryCounts[category]++
	user.CategoryCP[category] += rawCP
	user.DailyCP[day] += rawCP
	user.ActivityDays[day] = struct{}{}

	in30 := !day.Before(a.day30)
	if in30 {
		user.RawCP30d += rawCP
		user.MsgCount30d++
		user.CategoryCP30d[category] += rawCP
	}

	total := a.categoryTotals[category]
	total.Count++
	total.RawCP += rawCP
	if in30 {
		total.RawCP30d += rawCP
	}

	if !day.Before(a.trendStart) {
		a.dailyCP[day] += rawCP
		a.dailyMsgs[day]++
		a.activeOn(day)[msg.UserID] = struct{}{}
		wd, hour := heatmapKey(msg.Timestamp)
		a.heatmapMsgs[wd][hour]++
		a.heatmapCP[wd][hour] += rawCP
	}

	a.messageOwner[msg.ID] = msg.UserID

	ch := a.ensureChannel(msg.ChannelID, chName, weight)
	if in30 {
		ch.messages30d++
		ch.rawCP30d += rawCP
		ch.activeUsers[msg.UserID] = struct{}{}
		ch.userCP[msg.UserID] += rawCP
	}
}

// addReaction начисляет очки реактору и, если автор сообщения известен
// и отличается от реактора, усиливает ребро графа реактор→автор.
// Автор за полученную реакцию очков не получает.
func (a *accumulator) addReaction(reaction domain.Reaction) {
	if reaction.UserID == 0 || reaction.CreatedAt.IsZero() {
		return
	}
	reactor := a.ensureUser(reaction.UserID)
	day := dayOf(reaction.CreatedAt)
	cp := ReactionGiveCP

	reactor.RawCPTotal += cp
	reactor.ReactionsGivenTotal++
	reactor.DailyCP[day] += cp
	reactor.ActivityDays[day] = struct{}{}

	if !day.Before(a.day30) {
		reactor.RawCP30d += cp
		reactor.ReactionsGiven30d++
	}

	if !day.Before(a.trendStart) {
		a.dailyCP[day] += cp
		a.activeOn(day)[reaction.UserID] = struct{}{}
		wd, hour := heatmapKey(reaction.CreatedAt)
		a.heatmapCP[wd][hour] += cp
	}

	owner, ok := a.messageOwner[reaction.MessageID]
	if ok && owner != 0 && owner != reaction.UserID {
		a.edges[edgeKey{source: reaction.UserID, target: owner}]++
	}
}
