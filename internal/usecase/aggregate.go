package usecase

import (
	"sort"
	"time"

	"AlphaRadar/internal/domain/models"
	drepo "AlphaRadar/internal/domain/repository"

	"github.com/benbjohnson/clock"
)

// Aggregate counts, per symbol, the records newer than now-window.Duration()
// that contain it. A symbol listed twice in one record counts once. The
// result is ordered by count descending; ties keep the order in which the
// symbols first appear in the newest-first log. log is not modified.
func Aggregate(log []models.ScanRecord, window drepo.Window, now time.Time) []models.SymbolStat {
	cutoff := now.Add(-window.Duration()).UnixMilli()

	index := make(map[string]int)
	stats := make([]models.SymbolStat, 0)

	for _, rec := range log {
		if rec.Timestamp <= cutoff {
			continue
		}
		seen := make(map[string]struct{}, len(rec.Symbols))
		for _, sym := range rec.Symbols {
			if _, dup := seen[sym]; dup {
				continue
			}
			seen[sym] = struct{}{}

			i, ok := index[sym]
			if !ok {
				index[sym] = len(stats)
				stats = append(stats, models.SymbolStat{
					Symbol:    sym,
					Count:     1,
					FirstSeen: rec.Timestamp,
					LastSeen:  rec.Timestamp,
				})
				continue
			}
			st := &stats[i]
			st.Count++
			if rec.Timestamp < st.FirstSeen {
				st.FirstSeen = rec.Timestamp
			}
			if rec.Timestamp > st.LastSeen {
				st.LastSeen = rec.Timestamp
			}
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

// HistoryReader is the read side of HistoryStore.
type HistoryReader interface {
	GetAll() []models.ScanRecord
}

// StatsService builds windowed reports over the scan history.
type StatsService struct {
	history HistoryReader
	clock   clock.Clock
}

func NewStatsService(history HistoryReader, clk clock.Clock) *StatsService {
	if clk == nil {
		clk = clock.New()
	}
	return &StatsService{history: history, clock: clk}
}

// Report aggregates the history over window as of at. A zero at means now.
// Records taken after at are ignored.
func (s *StatsService) Report(window drepo.Window, at time.Time) models.StatsReport {
	if at.IsZero() {
		at = s.clock.Now()
	}
	if !drepo.IsValidWindow(window) {
		window = drepo.DefaultWindow()
	}

	end := at.UnixMilli()
	cutoff := at.Add(-window.Duration()).UnixMilli()

	all := s.history.GetAll()
	log := make([]models.ScanRecord, 0, len(all))
	records := 0
	for _, r := range all {
		if r.Timestamp > end {
			continue
		}
		log = append(log, r)
		if r.Timestamp > cutoff {
			records++
		}
	}

	stats := Aggregate(log, window, at)
	maxCount := 1
	for _, st := range stats {
		if st.Count > maxCount {
			maxCount = st.Count
		}
	}

	return models.StatsReport{
		Window:   string(window),
		Now:      at.UnixMilli(),
		Cutoff:   cutoff,
		Records:  records,
		MaxCount: maxCount,
		Stats:    stats,
	}
}
