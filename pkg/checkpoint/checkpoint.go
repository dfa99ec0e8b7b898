package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"twaler/pkg/logger"
)

// FileName is the checkpoint's name inside an instance directory
const FileName = "crawl.checkpoint.json"

// Version of the on-disk format
const Version = 1

// Status of a run
type Status string

const (
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Counters summarise a run
type Counters struct {
	LinesRead       int64 `json:"lines_read"`
	CommentsSkipped int64 `json:"comments_skipped"`
	SeedsProcessed  int64 `json:"seeds_processed"`
	SeedsRejected   int64 `json:"seeds_rejected"`
	SeedsPanicked   int64 `json:"seeds_panicked"`
	KindsOK         int64 `json:"kinds_ok"`
	KindsFailed     int64 `json:"kinds_failed"`
	KindsSkipped    int64 `json:"kinds_skipped"`
	Pages           int64 `json:"pages"`
	Bytes           int64 `json:"bytes"`
}

// Checkpoint is the persisted state of one crawl run
type Checkpoint struct {
	RunID      string     `json:"run_id"`
	SeedFile   string     `json:"seed_file"`
	Workers    int        `json:"workers"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Counters   Counters   `json:"counters"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Version    int        `json:"version"`
}

// Elapsed is the run time so far, or in total once finished
func (cp *Checkpoint) Elapsed() time.Duration {
	if cp.FinishedAt != nil {
		return cp.FinishedAt.Sub(cp.StartedAt)
	}
	return time.Since(cp.StartedAt)
}

// Manager reads and writes the checkpoint of one instance directory
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager for dir, creating dir if needed
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create instance directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		checkpointPath: filepath.Join(dir, FileName),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a new run record with a fresh run id
func (m *Manager) Create(seedFile string, workers int) (*Checkpoint, error) {
	now := time.Now().UTC()
	cp := &Checkpoint{
		RunID:     uuid.NewString(),
		SeedFile:  seedFile,
		Workers:   workers,
		Status:    StatusRunning,
		StartedAt: now,
		UpdatedAt: now,
		Version:   Version,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id": cp.RunID,
		"path":   m.checkpointPath,
	})

	return cp, nil
}

// Load reads the checkpoint; it returns nil, nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > Version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, Version)
	}

	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()

	file, err := os.CreateTemp(filepath.Dir(m.checkpointPath), ".tmp-checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to chmod checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id": cp.RunID,
		"status": cp.Status,
	})

	return nil
}

// Finish records the final counters and status. A nil runErr means success.
func (m *Manager) Finish(cp *Checkpoint, counters Counters, status Status, runErr error) error {
	now := time.Now().UTC()
	cp.Counters = counters
	cp.Status = status
	cp.FinishedAt = &now
	if runErr != nil {
		cp.Error = runErr.Error()
	}
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Load reads the checkpoint of the instance directory dir
func Load(dir string) (*Checkpoint, error) {
	m := &Manager{checkpointPath: filepath.Join(dir, FileName), logger: logger.NewNopLogger()}
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("no checkpoint in %s", dir)
	}
	return cp, nil
}
