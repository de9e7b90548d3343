package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// indexFileName is the summary index within the history directory.
const indexFileName = "index.json"

// Summary is one index row, enough to list runs without reading bodies.
type Summary struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	Dir           string        `json:"dir"`
	Result        Result        `json:"result"`
	Iterations    int           `json:"iterations"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Store persists entries under Dir, one JSON document per run plus a
// summary index. The directory is created lazily on first save.
type Store struct {
	Dir string
}

// NewStore creates a Store rooted at dir. No filesystem access happens
// until the first Save.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// fileName derives the on-disk name from the entry's creation date and id.
func fileName(e Entry) string {
	return fmt.Sprintf("%s-%s.json", e.StartedAt.Format("20060102"), e.ID)
}

// Save writes the entry to durable storage and upserts its index row.
// Failures are returned to the caller, which decides whether they are fatal.
func (s *Store) Save(e Entry) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("history: mkdir %q: %w", s.Dir, err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal entry %s: %w", e.ID, err)
	}
	if err := writeAtomic(filepath.Join(s.Dir, fileName(e)), data); err != nil {
		return fmt.Errorf("history: write entry %s: %w", e.ID, err)
	}

	return s.updateIndex(Summary{
		ID:            e.ID,
		StartedAt:     e.StartedAt,
		Dir:           e.Dir,
		Result:        e.Result,
		Iterations:    len(e.Iterations),
		TotalDuration: e.TotalDuration,
	})
}

// Load finds a stored entry by id, scanning the directory for a filename
// match so callers don't need to know the creation date.
func (s *Store) Load(id string) (Entry, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return Entry{}, fmt.Errorf("history: read dir %q: %w", s.Dir, err)
	}
	suffix := "-" + id + ".json"
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), suffix) {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(s.Dir, de.Name()))
		if readErr != nil {
			return Entry{}, fmt.Errorf("history: read %q: %w", de.Name(), readErr)
		}
		var e Entry
		if jsonErr := json.Unmarshal(data, &e); jsonErr != nil {
			return Entry{}, fmt.Errorf("history: parse %q: %w", de.Name(), jsonErr)
		}
		return e, nil
	}
	return Entry{}, fmt.Errorf("history: run %s not found", id)
}

// List returns index rows sorted by start time descending. limit caps the
// result when positive; zero returns everything. A missing index means no
// runs have been recorded yet.
func (s *Store) List(limit int) ([]Summary, error) {
	summaries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartedAt.After(summaries[j].StartedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// updateIndex upserts one summary row by id.
func (s *Store) updateIndex(row Summary) error {
	summaries, err := s.readIndex()
	if err != nil {
		return err
	}

	replaced := false
	for i := range summaries {
		if summaries[i].ID == row.ID {
			summaries[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		summaries = append(summaries, row)
	}

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal index: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.Dir, indexFileName), data); err != nil {
		return fmt.Errorf("history: write index: %w", err)
	}
	return nil
}

func (s *Store) readIndex() ([]Summary, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read index: %w", err)
	}
	var summaries []Summary
	if jsonErr := json.Unmarshal(data, &summaries); jsonErr != nil {
		return nil, fmt.Errorf("history: parse index: %w", jsonErr)
	}
	return summaries, nil
}

// EnforceRetention removes the oldest run files in dir, keeping at most
// maxKeep. The index is left alone; stale rows are harmless for listing and
// Load reports missing runs cleanly. maxKeep 0 disables retention.
func EnforceRetention(dir string, maxKeep int) error {
	if maxKeep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && e.Name() != indexFileName && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}

	sort.Strings(files) // date-prefixed names sort chronologically

	toDelete := len(files) - maxKeep
	for i := 0; i < toDelete; i++ {
		path := filepath.Join(dir, files[i])
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("history: remove %q: %w", path, err)
		}
	}
	return nil
}

// writeAtomic writes data via a temp file and rename so concurrent readers
// never observe a partially-written document.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return err
	}
	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return writeErr
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return closeErr
	}
	if renameErr := os.Rename(tmp.Name(), path); renameErr != nil {
		os.Remove(tmp.Name())
		return renameErr
	}
	return nil
}
