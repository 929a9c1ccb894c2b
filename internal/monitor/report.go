package monitor

import (
	"sync"
	"time"
)

// Report summarises one orchestrator invocation.
type Report struct {
	ConfigsDue         int       `json:"configs_due"`
	ConfigsCompleted   int       `json:"configs_completed"`
	ConfigsInterrupted int       `json:"configs_interrupted"`
	URLsAttempted      int       `json:"urls_attempted"`
	ItemsProcessed     int       `json:"items_processed"`
	ItemsCreated       int       `json:"items_created"`
	FetchFailures      int       `json:"fetch_failures"`
	SkippedTooShort    int       `json:"skipped_too_short"`
	NotEntitled        int       `json:"not_entitled"`
	AnalysisFailures   int       `json:"analysis_failures"`
	PersistFailures    int       `json:"persist_failures"`
	Panics             int       `json:"panics"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}

// configTally is the per-config counterpart of Report, merged once the config finishes.
type configTally struct {
	completed        bool
	urlsAttempted    int
	itemsProcessed   int
	itemsCreated     int
	fetchFailures    int
	skippedTooShort  int
	notEntitled      int
	analysisFailures int
	persistFailures  int
	panics           int
}

type reportBuilder struct {
	mu sync.Mutex
	r  Report
}

func (b *reportBuilder) merge(t configTally) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.completed {
		b.r.ConfigsCompleted++
	} else {
		b.r.ConfigsInterrupted++
	}
	b.r.URLsAttempted += t.urlsAttempted
	b.r.ItemsProcessed += t.itemsProcessed
	b.r.ItemsCreated += t.itemsCreated
	b.r.FetchFailures += t.fetchFailures
	b.r.SkippedTooShort += t.skippedTooShort
	b.r.NotEntitled += t.notEntitled
	b.r.AnalysisFailures += t.analysisFailures
	b.r.PersistFailures += t.persistFailures
	b.r.Panics += t.panics
}

func (b *reportBuilder) report() *Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.r
	return &r
}
