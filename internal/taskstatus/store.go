package taskstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// Task states mirror the document lifecycle so clients poll one vocabulary.
const (
	StatePending    = "PENDING"
	StateProcessing = "PROCESSING"
	StateCompleted  = "COMPLETED"
	StateFailed     = "FAILED"
)

// Progress is the polling payload's progress block.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"`
}

// Status is the full polling payload for one task.
type Status struct {
	State    string         `json:"state"`
	Progress Progress       `json:"progress"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Percentage computes current/total as a percentage rounded to two decimals;
// zero when total is zero.
func Percentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(current)/float64(total)*10000) / 100
}

// Store keeps task status payloads in Redis, one JSON value per task id with
// a TTL. An expired or never-written id reads back as PENDING, which matches
// how the previous deployment reported unknown task ids.
type Store struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewStore(client *redisv9.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, taskID string) (Status, error) {
	raw, err := s.client.Get(ctx, s.key(taskID)).Result()
	if err == redisv9.Nil {
		return Status{State: StatePending}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("redis get task status failed: %w", err)
	}

	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return Status{}, fmt.Errorf("unmarshal task status failed: %w", err)
	}
	return status, nil
}

func (s *Store) Pending(ctx context.Context, taskID string) error {
	return s.set(ctx, taskID, Status{State: StatePending})
}

func (s *Store) Started(ctx context.Context, taskID string) error {
	return s.set(ctx, taskID, Status{
		State:    StateProcessing,
		Progress: Progress{Status: "processing started"},
	})
}

// Progress records a monotonically increasing chunk counter for polling.
func (s *Store) Progress(ctx context.Context, taskID string, current, total int, note string) error {
	return s.set(ctx, taskID, Status{
		State: StateProcessing,
		Progress: Progress{
			Current:    current,
			Total:      total,
			Percentage: Percentage(current, total),
			Status:     note,
		},
	})
}

func (s *Store) Succeeded(ctx context.Context, taskID string, result map[string]any) error {
	total := 0
	if n, ok := result["chunk_count"].(int); ok {
		total = n
	}
	return s.set(ctx, taskID, Status{
		State: StateCompleted,
		Progress: Progress{
			Current:    total,
			Total:      total,
			Percentage: Percentage(total, total),
			Status:     "completed",
		},
		Result: result,
	})
}

func (s *Store) Failed(ctx context.Context, taskID, errorMessage string) error {
	return s.set(ctx, taskID, Status{
		State:    StateFailed,
		Progress: Progress{Status: "failed"},
		Error:    errorMessage,
	})
}

func (s *Store) set(ctx context.Context, taskID string, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal task status failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(taskID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set task status failed: %w", err)
	}
	return nil
}

func (s *Store) key(taskID string) string {
	return "task:status:" + taskID
}
