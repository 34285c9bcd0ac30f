package domain

import "time"

// Category — рубрика сообщения по классификатору.
type Category string

const (
	CategoryInfo    Category = "INFO"
	CategoryInsight Category = "INSIGHT"
	CategoryVibe    Category = "VIBE"
	CategoryOps     Category = "OPS"
	CategoryMisc    Category = "MISC"
)

// CategoryOrder задаёт фиксированный порядок рубрик в отчётах.
var CategoryOrder = []Category{CategoryInfo, CategoryInsight, CategoryVibe, CategoryOps, CategoryMisc}

// UserStats — агрегат активности одного участника за окно сканирования.
// Дневные ключи — полночь UTC.
type UserStats struct {
	UserID int64   `json:"user_id"`
	Name   string  `json:"name"`
	Trust  float64 `json:"trust"`

	RawCPTotal       float64 `json:"raw_cp_total"`
	RawCP30d         float64 `json:"raw_cp_30d"`
	EffectiveCPTotal float64 `json:"effective_cp_total"`
	EffectiveCP30d   float64 `json:"effective_cp_30d"`

	MsgCountTotal       int `json:"msg_count_total"`
	MsgCount30d         int `json:"msg_count_30d"`
	ReactionsGivenTotal int `json:"reactions_given_total"`
	ReactionsGiven30d   int `json:"reactions_given_30d"`

	CategoryCounts map[Category]int     `json:"category_counts"`
	CategoryCP     map[Category]float64 `json:"category_cp"`
	CategoryCP30d  map[Category]float64 `json:"category_cp_30d"`

	DailyCP      map[time.Time]float64  `json:"daily_cp"`
	ActivityDays map[time.Time]struct{} `json:"activity_days"`

	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
	VP            int `json:"vp"`
	EffectiveVP   int `json:"effective_vp"`
	Rank30d       int `json:"rank_30d"`
	RankTotal     int `json:"rank_total"`
}

// ChannelRow — статистика канала за 30 дней с чемпионом по вкладу.
type ChannelRow struct {
	ChannelID    int64   `json:"channel_id"`
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Messages30d  int     `json:"messages_30d"`
	RawCP30d     float64 `json:"raw_cp_30d"`
	ActiveUsers  int     `json:"active_users"`
	ChampionID   int64   `json:"champion_id"`
	ChampionName string  `json:"champion_name"`
	ChampionCP   float64 `json:"champion_cp"`
}

// CategoryTotal — суммарные показатели рубрики по всему окну.
type CategoryTotal struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	RawCP    float64  `json:"raw_cp"`
	RawCP30d float64  `json:"raw_cp_30d"`
}

// CategoryEntry — строка лидерборда рубрики.
type CategoryEntry struct {
	UserID int64   `json:"user_id"`
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	CP30d  float64 `json:"cp_30d"`
}

// GraphEdge — направленное ребро социального графа реакций.
type GraphEdge struct {
	Source int64   `json:"source"`
	Target int64   `json:"target"`
	Weight float64 `json:"weight"`
}

// GraphNode — узел графа с суммарной взвешенной степенью.
type GraphNode struct {
	UserID int64   `json:"user_id"`
	Name   string  `json:"name"`
	Degree float64 `json:"degree"`
}

// ScanScope фиксирует размер отсканированного окна и срабатывание лимитов.
type ScanScope struct {
	Messages           int  `json:"messages"`
	Reactions          int  `json:"reactions"`
	Users              int  `json:"users"`
	MessagesTruncated  bool `json:"messages_truncated"`
	ReactionsTruncated bool `json:"reactions_truncated"`
	UsersTruncated     bool `json:"users_truncated"`
}

// SourceStatus — результат обращения к одному источнику окна.
type SourceStatus struct {
	Source string `json:"source"`
	OK     bool   `json:"ok"`
	Err    string `json:"err,omitempty"`
}

// TableStatus — доступность одной таблицы хранилища.
type TableStatus struct {
	Table     string `json:"table"`
	Available bool   `json:"available"`
	Sampled   int    `json:"sampled"`
	Err       string `json:"err,omitempty"`
}

// Snapshot — неизменяемая аналитическая модель сообщества, построенная
// за одно сканирование окна. После сборки снапшот не мутируется.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	ScanDays    int       `json:"scan_days"`
	ScanSince   time.Time `json:"scan_since"`
	TrendDays   int       `json:"trend_days"`

	Scope   ScanScope      `json:"scope"`
	Sources []SourceStatus `json:"sources"`

	Users       map[int64]*UserStats `json:"users"`
	Ranked30d   []*UserStats         `json:"ranked_30d"`
	RankedTotal []*UserStats         `json:"ranked_total"`

	CategoryTotals  map[Category]*CategoryTotal  `json:"category_totals"`
	CategoryLeaders map[Category][]CategoryEntry `json:"category_leaders"`

	Channels []ChannelRow `json:"channels"`

	DailyCP       map[time.Time]float64 `json:"daily_cp"`
	DailyMessages map[time.Time]int     `json:"daily_messages"`
	DailyActive   map[time.Time]int     `json:"daily_active"`

	HeatmapMessages [7][24]int     `json:"heatmap_messages"`
	HeatmapCP       [7][24]float64 `json:"heatmap_cp"`

	TopEdges []GraphEdge `json:"top_edges"`
	TopNodes []GraphNode `json:"top_nodes"`
}
