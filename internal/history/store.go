// Package history persists past detections so they can be listed and
// revisited. The consensus core never writes here; callers do, after a
// detection succeeds.
package history

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spboyer/veracity/internal/models"
)

// ErrRecordNotFound is returned when an ID does not match any stored record.
var ErrRecordNotFound = errors.New("record not found")

// Record is one stored detection.
type Record struct {
	ID        string                  `json:"id"`
	CreatedAt time.Time               `json:"created_at"`
	InputText string                  `json:"input_text"`
	WordCount int                     `json:"word_count"`
	Result    *models.ConsensusResult `json:"result"`
}

// Summary aggregates every stored record.
type Summary struct {
	TotalDetections int                      `json:"total_detections"`
	TotalWords      int                      `json:"total_words"`
	AverageScore    float64                  `json:"average_score"`
	ByCategory      map[models.Category]int  `json:"by_category"`
	ByRiskLevel     map[models.RiskLevel]int `json:"by_risk_level"`
}

// Store provides access to stored detections.
type Store interface {
	// Save assigns an ID and timestamp when missing and persists rec.
	Save(rec *Record) error
	// Get returns a single record.
	Get(id string) (*Record, error)
	// List returns up to limit records, newest first. limit <= 0 means all.
	List(limit int) ([]Record, error)
	// Summary returns aggregate counts across all records.
	Summary() (*Summary, error)
}

// FileStore keeps one JSON file per record in a directory.
type FileStore struct {
	dir string
	now func() time.Time
	mu  sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

func (fs *FileStore) Save(rec *Record) error {
	if rec.Result == nil {
		return errors.New("record has no result")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else if _, err := uuid.Parse(rec.ID); err != nil {
		return fmt.Errorf("invalid record id %q: %w", rec.ID, err)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = fs.now().UTC()
	}

	if rec.WordCount == 0 {
		rec.WordCount = len(strings.Fields(rec.InputText))
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp := fs.path(rec.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	if err := os.Rename(tmp, fs.path(rec.ID)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing record: %w", err)
	}

	return nil
}

func (fs *FileStore) Get(id string) (*Record, error) {
	// only UUIDs ever name a file, which also keeps ids from escaping dir
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordNotFound
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	rec, err := readRecord(fs.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (fs *FileStore) List(limit int) ([]Record, error) {
	records, err := fs.loadAll()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (fs *FileStore) Summary() (*Summary, error) {
	records, err := fs.loadAll()
	if err != nil {
		return nil, err
	}

	s := &Summary{
		ByCategory:  map[models.Category]int{},
		ByRiskLevel: map[models.RiskLevel]int{},
	}

	var totalScore int
	for _, r := range records {
		s.TotalDetections++
		s.TotalWords += r.WordCount
		totalScore += r.Result.OverallScore
		s.ByCategory[r.Result.Category]++
		s.ByRiskLevel[r.Result.RiskLevel]++
	}

	if s.TotalDetections > 0 {
		s.AverageScore = float64(totalScore) / float64(s.TotalDetections)
	}
	return s, nil
}

// loadAll reads every record in the directory, skipping unreadable files.
func (fs *FileStore) loadAll() ([]Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	var records []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}

		rec, err := readRecord(filepath.Join(fs.dir, e.Name()))
		if err != nil || rec.Result == nil {
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.dir, id+".json")
}
