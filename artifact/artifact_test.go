package artifact

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WritesPayloadAndMetadataSidecar(t *testing.T) {
	s, err := New(t.TempDir(), 10*1024)
	require.NoError(t, err)

	path, meta, err := s.Store("run-1", "list_files", map[string]interface{}{"path": "."}, []string{"a.txt"}, 5*time.Millisecond, "success", "")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, "list_files_001.json"))
	assert.Equal(t, 1, meta.Sequence)
	assert.False(t, meta.Compressed)

	body, err := s.Get(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "a.txt")
}

func TestStore_InputHashMatchesCanonicalMD5(t *testing.T) {
	s, err := New(t.TempDir(), 10*1024)
	require.NoError(t, err)

	input := map[string]interface{}{"b": 2, "a": 1}
	_, meta, err := s.Store("run-1", "read_file", input, "contents", time.Millisecond, "success", "")
	require.NoError(t, err)

	expected, _, err := canonicalHash(input)
	require.NoError(t, err)
	assert.Equal(t, expected, meta.InputHash)

	sum := md5.Sum([]byte(`{"a":1,"b":2}`))
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.InputHash)
}

func TestStore_CompressesAboveThreshold(t *testing.T) {
	s, err := New(t.TempDir(), 10)
	require.NoError(t, err)

	big := strings.Repeat("x", 1000)
	path, meta, err := s.Store("run-1", "read_file", "in", big, time.Millisecond, "success", "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".json.gz"))
	assert.True(t, meta.Compressed)

	body, err := s.Get(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), big)
}

func TestStore_SequenceIncrementsPerRunNotGlobally(t *testing.T) {
	s, err := New(t.TempDir(), 10*1024)
	require.NoError(t, err)

	_, m1, err := s.Store("run-1", "read_file", "a", "b", time.Millisecond, "success", "")
	require.NoError(t, err)
	_, m2, err := s.Store("run-1", "read_file", "a", "b", time.Millisecond, "success", "")
	require.NoError(t, err)
	_, m3, err := s.Store("run-2", "read_file", "a", "b", time.Millisecond, "success", "")
	require.NoError(t, err)

	assert.Equal(t, 1, m1.Sequence)
	assert.Equal(t, 2, m2.Sequence)
	assert.Equal(t, 1, m3.Sequence)
}

func TestListRun_OrdersBySequenceAndExcludesMetadata(t *testing.T) {
	s, err := New(t.TempDir(), 10*1024)
	require.NoError(t, err)

	s.Store("run-1", "tool_a", "in", "out", time.Millisecond, "success", "")
	s.Store("run-1", "tool_b", "in", "out", time.Millisecond, "success", "")

	files, err := s.ListRun("run-1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.True(t, strings.HasSuffix(files[0], "tool_a_001.json"))
	assert.True(t, strings.HasSuffix(files[1], "tool_b_002.json"))
}

func TestListRun_UnknownRunReturnsEmpty(t *testing.T) {
	s, err := New(t.TempDir(), 10*1024)
	require.NoError(t, err)
	files, err := s.ListRun("missing-run")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestStats_CountsBytesFilesAndRuns(t *testing.T) {
	s, err := New(t.TempDir(), 10*1024)
	require.NoError(t, err)
	s.Store("run-1", "tool_a", "in", "out", time.Millisecond, "success", "")
	s.Store("run-2", "tool_b", "in", "out", time.Millisecond, "success", "")

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RunCount)
	assert.Equal(t, 4, stats.FileCount) // 2 payloads + 2 sidecars
	assert.True(t, stats.TotalBytes > 0)
}
