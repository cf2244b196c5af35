package domain

import "time"

// WorkerStatus is the supervisor-side lifecycle state of a worker slot.
type WorkerStatus string

const (
	WorkerStarting WorkerStatus = "STARTING"
	WorkerRunning  WorkerStatus = "RUNNING"
	WorkerDraining WorkerStatus = "DRAINING"
	WorkerStopped  WorkerStatus = "STOPPED"
	WorkerCrashed  WorkerStatus = "CRASHED"
)

// WorkerRecord is the supervisor's view of one worker. Records persist after
// the worker stops; crashed workers are respawned under a fresh id linked by
// partition.
type WorkerRecord struct {
	ID             string          `json:"id"`
	Partition      Partition       `json:"partition"`
	Status         WorkerStatus    `json:"status"`
	RestartCount   int             `json:"restart_count"`
	LastSnapshot   MetricsSnapshot `json:"last_snapshot"`
	LastSnapshotAt time.Time       `json:"last_snapshot_at"`
	StartedAt      time.Time       `json:"started_at"`
}
