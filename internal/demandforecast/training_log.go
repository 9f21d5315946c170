package demandforecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/richxcame/taxi-demand/pkg/storage"
	"gonum.org/v1/gonum/stat"
)

// TrainingDataKey is the store key the training log lives under.
const TrainingDataKey = "historical_demand_data"

// Training log bounds: once the log grows past DefaultTrainingLogMax only
// the newest DefaultTrainingLogTrimTo samples are kept.
const (
	DefaultTrainingLogMax    = 10000
	DefaultTrainingLogTrimTo = 8000
)

// ErrCorruptTrainingData is returned by Load when the stored blob cannot be decoded.
var ErrCorruptTrainingData = errors.New("corrupt training data")

// TrainingStats summarises the training log.
type TrainingStats struct {
	Samples           int        `json:"samples"`
	MeanDemandScore   float64    `json:"mean_demand_score"`
	StdDevDemandScore float64    `json:"stddev_demand_score"`
	DistinctCells     int        `json:"distinct_cells"`
	Oldest            *time.Time `json:"oldest,omitempty"`
	Newest            *time.Time `json:"newest,omitempty"`
}

// TrainingLog is a bounded, persisted log of training samples.
type TrainingLog struct {
	mu        sync.Mutex
	persistMu sync.Mutex
	store     storage.BlobStore
	max       int
	trimTo    int
	samples   []TrainingSample
}

// NewTrainingLog creates an empty log backed by store.
func NewTrainingLog(store storage.BlobStore, maxSamples, trimTo int) *TrainingLog {
	if maxSamples <= 0 {
		maxSamples = DefaultTrainingLogMax
	}
	if trimTo <= 0 || trimTo > maxSamples {
		trimTo = DefaultTrainingLogTrimTo
		if trimTo > maxSamples {
			trimTo = maxSamples
		}
	}
	return &TrainingLog{
		store:  store,
		max:    maxSamples,
		trimTo: trimTo,
	}
}

// Load replaces the in-memory log with the persisted one. Missing data
// leaves the log empty and is not an error; undecodable data leaves it
// empty and returns ErrCorruptTrainingData.
func (l *TrainingLog) Load(ctx context.Context) error {
	data, err := l.store.Load(ctx, TrainingDataKey)
	if errors.Is(err, storage.ErrNotFound) {
		l.replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load training data: %w", err)
	}

	var samples []TrainingSample
	if len(data) > 0 {
		if err := json.Unmarshal(data, &samples); err != nil {
			l.replace(nil)
			return fmt.Errorf("%w: %v", ErrCorruptTrainingData, err)
		}
	}
	l.replace(samples)
	return nil
}

func (l *TrainingLog) replace(samples []TrainingSample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = samples
	if len(l.samples) > l.max {
		l.trimLocked()
	}
	trainingSamples.Set(float64(len(l.samples)))
}

// Append adds a sample and reports whether the log had to be trimmed.
func (l *TrainingLog) Append(sample TrainingSample) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples = append(l.samples, sample)
	trimmed := false
	if len(l.samples) > l.max {
		l.trimLocked()
		trimmed = true
	}
	trainingSamples.Set(float64(len(l.samples)))
	return trimmed
}

func (l *TrainingLog) trimLocked() {
	kept := make([]TrainingSample, l.trimTo)
	copy(kept, l.samples[len(l.samples)-l.trimTo:])
	l.samples = kept
}

// Samples returns a copy of the log, oldest first.
func (l *TrainingLog) Samples() []TrainingSample {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TrainingSample, len(l.samples))
	copy(out, l.samples)
	return out
}

// Len returns the number of samples.
func (l *TrainingLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}

// Persist writes the whole log to the store. Concurrent calls are
// serialised so an older snapshot never overwrites a newer one.
func (l *TrainingLog) Persist(ctx context.Context) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	data, err := json.Marshal(l.samples)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode training data: %w", err)
	}

	if err := l.store.Save(ctx, TrainingDataKey, data); err != nil {
		return fmt.Errorf("failed to save training data: %w", err)
	}
	return nil
}

// Stats computes summary statistics over the log.
func (l *TrainingLog) Stats() TrainingStats {
	samples := l.Samples()
	stats := TrainingStats{Samples: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	scores := make([]float64, len(samples))
	cells := make(map[string]struct{})
	oldest, newest := samples[0].Timestamp, samples[0].Timestamp
	for i, s := range samples {
		scores[i] = s.Result.DemandScore
		if s.Cell != "" {
			cells[s.Cell] = struct{}{}
		}
		if s.Timestamp.Before(oldest) {
			oldest = s.Timestamp
		}
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
	}

	if len(scores) > 1 {
		stats.MeanDemandScore, stats.StdDevDemandScore = stat.MeanStdDev(scores, nil)
	} else {
		stats.MeanDemandScore = scores[0]
	}
	stats.DistinctCells = len(cells)
	stats.Oldest = &oldest
	stats.Newest = &newest
	return stats
}
