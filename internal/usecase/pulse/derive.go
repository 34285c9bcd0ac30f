package pulse

import (
	"math"
	"sort"
	"time"

	"tg-pulse-bot/internal/domain"
)

// CalcVP переводит эффективные CP в логарифмическую шкалу с потолком:
// vp = clamp(floor(log2(cp+1)) + 1, 1, MaxVP).
func CalcVP(effectiveCP float64) int {
	if effectiveCP <= 0 {
		return 1
	}
	vp := int(math.Floor(math.Log2(effectiveCP+1))) + 1
	if vp < 1 {
		vp = 1
	}
	if vp > MaxVP {
		vp = MaxVP
	}
	return vp
}

func clampTrust(trust float64) float64 {
	if trust < 0 {
		return 0
	}
	if trust > 100 {
		return 100
	}
	return trust
}

// deriveUser применяет траст-множитель, кривую VP и вычисление стриков.
// Эффективный VP масштабируется трастом, но никогда не падает ниже 1.
func deriveUser(user *domain.UserStats, today time.Time) {
	trust := clampTrust(user.Trust)
	user.Trust = trust
	user.EffectiveCPTotal = user.RawCPTotal * trust / 100
	user.EffectiveCP30d = user.RawCP30d * trust / 100
	user.VP = CalcVP(user.EffectiveCPTotal)
	effVP := int(math.Floor(float64(user.VP) * trust / 100))
	if effVP < 1 {
		effVP = 1
	}
	user.EffectiveVP = effVP
	user.CurrentStreak, user.LongestStreak = streaks(user.ActivityDays, today)
}

// streaks считает текущую серию активных дней, заканчивающуюся сегодня,
// и максимальную серию за всё окно.
func streaks(days map[time.Time]struct{}, today time.Time) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}
	sorted := make([]time.Time, 0, len(days))
	for day := range days {
		sorted = append(sorted, day)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	longest = 1
	run := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].AddDate(0, 0, 1).Equal(sorted[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	for cursor := today; ; cursor = cursor.AddDate(0, 0, -1) {
		if _, ok := days[cursor]; !ok {
			break
		}
		current++
	}
	return current, longest
}
