// Package artifact implements the ArtifactStore: content-addressed,
// per-run capture of every tool invocation's input/output, with metadata
// sidecars and threshold-gated gzip compression. The per-run sequence
// counters use the same mutex-guarded map idiom as workflow_dag.go's
// DAGNode map and catalog.go's AgentCatalog.
package artifact

import (
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metadata is the full sidecar record for one artifact. ExecutionTime is
// seconds (float), matching the payload's own duration.Seconds() encoding
// (SPEC_FULL.md §4.3) rather than Go's default nanosecond integer.
type Metadata struct {
	RunID         string    `json:"run_id"`
	ToolName      string    `json:"tool_name"`
	Sequence      int       `json:"sequence"`
	Timestamp     time.Time `json:"timestamp"`
	InputHash     string    `json:"input_hash"`
	OutputBytes   int       `json:"output_bytes"`
	ExecutionTime float64   `json:"execution_time"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Compressed    bool      `json:"compressed"`
}

type payload struct {
	Input         interface{} `json:"input"`
	Output        interface{} `json:"output"`
	Timestamp     time.Time   `json:"timestamp"`
	ExecutionTime float64     `json:"execution_time"`
	Status        string      `json:"status"`
	Error         string      `json:"error,omitempty"`
}

// Store is the ArtifactStore component.
type Store struct {
	root           string
	compressBytes  int
	mu             sync.Mutex
	sequences      map[string]*int
}

// New roots a Store at dir, creating it if necessary. compressBytes gates
// gzip compression (reference default 10 KiB per SPEC_FULL.md §4.3).
func New(dir string, compressBytes int) (*Store, error) {
	if compressBytes <= 0 {
		compressBytes = 10 * 1024
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create root: %w", err)
	}
	return &Store{root: dir, compressBytes: compressBytes, sequences: make(map[string]*int)}, nil
}

func canonicalHash(v interface{}) (string, []byte, error) {
	b, err := canonicalJSON(v)
	if err != nil {
		return "", nil, err
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:]), b, nil
}

// canonicalJSON serializes v with stable (sorted) map key order, so the
// same logical input always hashes the same way.
func canonicalJSON(v interface{}) ([]byte, error) {
	// Round-trip through interface{} normalizes to map[string]interface{}
	// whose encoding/json.Marshal already emits map keys in sorted order.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func (s *Store) nextSequence(runID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counter, ok := s.sequences[runID]
	if !ok {
		zero := 0
		counter = &zero
		s.sequences[runID] = counter
	}
	*counter++
	return *counter
}

// Store persists one step's input/output under runId, returning the
// absolute path to the written payload file (SPEC_FULL.md §4.3, steps 1-6).
func (s *Store) Store(runID, toolName string, input, output interface{}, duration time.Duration, status string, errInfo string) (string, *Metadata, error) {
	runDir := filepath.Join(s.root, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("artifact: create run dir: %w", err)
	}

	seq := s.nextSequence(runID)
	artifactID := fmt.Sprintf("%s_%03d", toolName, seq)

	inputHash, _, err := canonicalHash(input)
	if err != nil {
		return "", nil, fmt.Errorf("artifact: hash input: %w", err)
	}

	p := payload{
		Input:         input,
		Output:        output,
		Timestamp:     time.Now().UTC(),
		ExecutionTime: duration.Seconds(),
		Status:        status,
		Error:         errInfo,
	}
	body, err := canonicalJSON(p)
	if err != nil {
		return "", nil, fmt.Errorf("artifact: marshal payload: %w", err)
	}

	compressed := len(body) > s.compressBytes
	var payloadPath string
	if compressed {
		payloadPath = filepath.Join(runDir, artifactID+".json.gz")
		if err := writeGzip(payloadPath, body); err != nil {
			return "", nil, fmt.Errorf("artifact: write compressed payload: %w", err)
		}
	} else {
		payloadPath = filepath.Join(runDir, artifactID+".json")
		if err := os.WriteFile(payloadPath, body, 0o644); err != nil {
			return "", nil, fmt.Errorf("artifact: write payload: %w", err)
		}
	}

	meta := Metadata{
		RunID: runID, ToolName: toolName, Sequence: seq, Timestamp: p.Timestamp,
		InputHash: inputHash, OutputBytes: len(body), ExecutionTime: duration.Seconds(),
		Status: status, Error: errInfo, Compressed: compressed,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("artifact: marshal metadata: %w", err)
	}
	metaPath := filepath.Join(runDir, artifactID+"_metadata.json")
	if err := os.WriteFile(metaPath, metaBytes, 0o644); err != nil {
		return "", nil, fmt.Errorf("artifact: write metadata: %w", err)
	}

	return payloadPath, &meta, nil
}

func writeGzip(path string, body []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	gw := gzip.NewWriter(f)
	if _, err := gw.Write(body); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// Get reads a payload file, transparently decompressing .gz suffixed paths.
func (s *Store) Get(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("artifact: gzip reader: %w", err)
		}
		defer gr.Close()
		return io.ReadAll(gr)
	}
	return io.ReadAll(f)
}

// ListRun enumerates payload files (excluding metadata sidecars) for runID,
// ordered by their metadata sequence number.
func (s *Store) ListRun(runID string) ([]string, error) {
	runDir := filepath.Join(s.root, runID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact: list run: %w", err)
	}

	type item struct {
		path string
		seq  int
	}
	var items []item
	for _, entry := range entries {
		name := entry.Name()
		if strings.Contains(name, "_metadata.json") {
			continue
		}
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".json.gz") {
			continue
		}
		metaPath := metadataPathFor(runDir, name)
		seq := 0
		if b, err := os.ReadFile(metaPath); err == nil {
			var m Metadata
			if json.Unmarshal(b, &m) == nil {
				seq = m.Sequence
			}
		}
		items = append(items, item{path: filepath.Join(runDir, name), seq: seq})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.path
	}
	return out, nil
}

func metadataPathFor(runDir, payloadName string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(payloadName, ".gz"), ".json")
	return filepath.Join(runDir, base+"_metadata.json")
}

// Cleanup removes entire run directories whose oldest file predates the
// cutoff (SPEC_FULL.md §4.3 retention policy).
func (s *Store) Cleanup(olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("artifact: cleanup list: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runDir := filepath.Join(s.root, entry.Name())
		oldest, err := oldestModTime(runDir)
		if err != nil {
			continue
		}
		if oldest.Before(cutoff) {
			if err := os.RemoveAll(runDir); err != nil {
				return removed, fmt.Errorf("artifact: remove %s: %w", runDir, err)
			}
			removed++
		}
	}
	return removed, nil
}

func oldestModTime(dir string) (time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, err
	}
	var oldest time.Time
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if oldest.IsZero() || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
	}
	if oldest.IsZero() {
		return time.Time{}, fmt.Errorf("empty directory")
	}
	return oldest, nil
}

// Stats summarizes the store's footprint.
type Stats struct {
	TotalBytes int64
	FileCount  int
	RunCount   int
}

// Stats walks the root and returns aggregate size/file/run counts.
func (s *Store) Stats() (Stats, error) {
	var stats Stats
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("artifact: stats: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		stats.RunCount++
		runDir := filepath.Join(s.root, entry.Name())
		files, err := os.ReadDir(runDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			info, err := f.Info()
			if err != nil {
				continue
			}
			stats.FileCount++
			stats.TotalBytes += info.Size()
		}
	}
	return stats, nil
}
