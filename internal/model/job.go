package model

import "time"

// Job names double as lock keys.
const (
	JobPriceTracker   = "price_tracker"
	JobAlertEvaluator = "alert_evaluator"
)

// JobStatus is the outcome of one job invocation.
type JobStatus string

const (
	JobCompleted       JobStatus = "completed"
	JobStoppedDeadline JobStatus = "stopped_deadline"
	JobSkippedLocked   JobStatus = "skipped_locked"
	JobFailed          JobStatus = "failed"
)

// JobLock is a time-bounded ownership claim on a named job.
type JobLock struct {
	JobName    string    `json:"job_name"`
	OwnerToken string    `json:"owner_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// PriceTrackerResult summarizes one price tracking run.
type PriceTrackerResult struct {
	Job        string    `json:"job"`
	Status     JobStatus `json:"status"`
	Processed  int       `json:"processed"`
	Changed    int       `json:"changed"`
	Unchanged  int       `json:"unchanged"`
	Failed     int       `json:"failed"`
	Batches    int       `json:"batches"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// AlertEvaluatorResult summarizes one alert evaluation run.
type AlertEvaluatorResult struct {
	Job                string    `json:"job"`
	Status             JobStatus `json:"status"`
	AlertsProcessed    int       `json:"alerts_processed"`
	EventsTriggered    int       `json:"events_triggered"`
	Suppressed         int       `json:"suppressed"`
	SkippedCooldown    int       `json:"skipped_cooldown"`
	SkippedUnsupported int       `json:"skipped_unsupported"`
	Failed             int       `json:"failed"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	Error              string    `json:"error,omitempty"`
}

// StoreStats is a row count snapshot of the data store.
type StoreStats struct {
	Households   int64 `json:"households"`
	Wishes       int64 `json:"wishes"`
	Products     int64 `json:"products"`
	Offers       int64 `json:"offers"`
	PriceHistory int64 `json:"price_history"`
	RiskScores   int64 `json:"risk_scores"`
	Alerts       int64 `json:"alerts"`
	AlertEvents  int64 `json:"alert_events"`
}
