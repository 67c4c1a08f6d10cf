package core

// FacilityStatistics aggregates the committed facilities.
type FacilityStatistics struct {
	Total                 int                    `json:"total"`
	Operational           int                    `json:"operational"`
	ByType                map[FacilityType]int   `json:"byType"`
	ByStatus              map[FacilityStatus]int `json:"byStatus"`
	OperationalPercentage float64                `json:"operationalPercentage"`
	MostCommonType        FacilityType           `json:"mostCommonType,omitempty"`
	MostCommonStatus      FacilityStatus         `json:"mostCommonStatus,omitempty"`
}

// FacilityStatistics computes counts over the committed facilities. Ties for the most common
// type or status go to the value seen first in insertion order.
func (m *FacilityManager) FacilityStatistics() FacilityStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := FacilityStatistics{
		Total:    len(m.state.facilities),
		ByType:   make(map[FacilityType]int),
		ByStatus: make(map[FacilityStatus]int),
	}
	var types tally[FacilityType]
	var statuses tally[FacilityStatus]
	for _, f := range m.state.facilities {
		if f.IsOperational() {
			stats.Operational++
		}
		stats.ByType[f.Type]++
		stats.ByStatus[f.Status]++
		types.add(f.Type)
		statuses.add(f.Status)
	}
	if stats.Total > 0 {
		stats.OperationalPercentage = float64(stats.Operational) / float64(stats.Total) * 100
	}
	stats.MostCommonType = types.mostCommon()
	stats.MostCommonStatus = statuses.mostCommon()
	return stats
}

// tally counts values while remembering first-seen order.
type tally[K comparable] struct {
	order  []K
	counts map[K]int
}

func (t *tally[K]) add(k K) {
	if t.counts == nil {
		t.counts = make(map[K]int)
	}
	if _, seen := t.counts[k]; !seen {
		t.order = append(t.order, k)
	}
	t.counts[k]++
}

func (t *tally[K]) mostCommon() K {
	var best K
	bestCount := 0
	for _, k := range t.order {
		if c := t.counts[k]; c > bestCount {
			best, bestCount = k, c
		}
	}
	return best
}
