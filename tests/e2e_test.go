package tests

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/parflate/parflate/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPackUnpackRoundTrip simulates the basic user journey:
// pack a file, unpack it elsewhere, compare hashes.
func TestPackUnpackRoundTrip(t *testing.T) {
	// 1. Setup: 1MB of compressible-ish data (random would also work, but
	// mixed content exercises both encoder paths).
	tmpDir := t.TempDir()
	originalFile := filepath.Join(tmpDir, "dataset.bin")
	originalContent := make([]byte, 1024*1024)
	_, err := rand.Read(originalContent[:512*1024])
	require.NoError(t, err)
	// second half stays zero, so the stream mixes stored and coded blocks

	require.NoError(t, os.WriteFile(originalFile, originalContent, 0644))
	originalHash := sha256.Sum256(originalContent)

	root := cmd.GetRootCmd()

	// 2. Pack with a checksum.
	root.SetArgs([]string{"pack", originalFile, "-c"})
	require.NoError(t, root.Execute(), "pack command failed")

	packedFile := originalFile + ".pflt"
	info, err := os.Stat(packedFile)
	require.NoError(t, err, "packed file missing")
	assert.Less(t, info.Size(), int64(len(originalContent)+1024), "no size win at all")

	// 3. Unpack to a fresh path with 4 workers.
	restoredFile := filepath.Join(tmpDir, "restored.bin")
	root.SetArgs([]string{"unpack", packedFile, "-o", restoredFile, "-j", "4"})
	require.NoError(t, root.Execute(), "unpack command failed")

	// 4. The ultimate check: hashes match.
	restoredContent, err := os.ReadFile(restoredFile)
	require.NoError(t, err)
	restoredHash := sha256.Sum256(restoredContent)
	if !bytes.Equal(originalHash[:], restoredHash[:]) {
		t.Fatalf("restored file hash mismatch!\nOriginal: %x\nRestored: %x", originalHash, restoredHash)
	}
}

// TestScatterGatherRoundTrip simulates the disaster-recovery journey:
// scatter into 5 shards, lose 2, gather the rest back.
func TestScatterGatherRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	originalFile := filepath.Join(tmpDir, "archive.tar")
	originalContent := bytes.Repeat([]byte("backups are cheap, regrets are not. "), 20000)
	require.NoError(t, os.WriteFile(originalFile, originalContent, 0644))
	originalHash := sha256.Sum256(originalContent)

	shardDir := filepath.Join(tmpDir, "shards")
	root := cmd.GetRootCmd()

	// 1. Scatter 5 shards with threshold 3.
	root.SetArgs([]string{"scatter", originalFile, "-n", "5", "-t", "3", "-d", shardDir, "-c"})
	require.NoError(t, root.Execute(), "scatter command failed")

	matches, err := filepath.Glob(filepath.Join(shardDir, "*.pfls"))
	require.NoError(t, err)
	assert.Equal(t, 5, len(matches), "should have created 5 shard files")

	// 2. Simulate disaster: delete 2 shards (threshold is 3, so we survive).
	require.NoError(t, os.Remove(matches[1]))
	require.NoError(t, os.Remove(matches[4]))

	// 3. Gather from the surviving shards.
	restoreDir := filepath.Join(tmpDir, "restored")
	root.SetArgs([]string{"gather", shardDir, "-d", restoreDir, "-j", "4"})
	require.NoError(t, root.Execute(), "gather command failed")

	restoredContent, err := os.ReadFile(filepath.Join(restoreDir, "archive.tar"))
	require.NoError(t, err, "failed to read restored file")
	restoredHash := sha256.Sum256(restoredContent)
	if !bytes.Equal(originalHash[:], restoredHash[:]) {
		t.Fatalf("restored file hash mismatch!\nOriginal: %x\nRestored: %x", originalHash, restoredHash)
	}
}

// TestGatherBelowThresholdFailsGracefully checks the CLI reports a problem
// instead of producing garbage when too many shards are gone.
func TestGatherBelowThresholdFailsGracefully(t *testing.T) {
	tmpDir := t.TempDir()
	originalFile := filepath.Join(tmpDir, "notes.txt")
	require.NoError(t, os.WriteFile(originalFile, []byte("do not lose three of these"), 0644))

	shardDir := filepath.Join(tmpDir, "shards")
	root := cmd.GetRootCmd()
	root.SetArgs([]string{"scatter", originalFile, "-n", "4", "-t", "3", "-d", shardDir})
	require.NoError(t, root.Execute())

	matches, err := filepath.Glob(filepath.Join(shardDir, "*.pfls"))
	require.NoError(t, err)
	require.Equal(t, 4, len(matches))
	require.NoError(t, os.Remove(matches[0]))
	require.NoError(t, os.Remove(matches[2]))

	restoreDir := filepath.Join(tmpDir, "restored")
	root.SetArgs([]string{"gather", shardDir, "-d", restoreDir})
	_ = root.Execute() // the command reports, it must not fabricate a file

	_, err = os.Stat(filepath.Join(restoreDir, "notes.txt"))
	assert.True(t, os.IsNotExist(err), "gather produced a file with only 2 of 3 shards")
}

// TestPackLevelsProduceDecodableStreams runs the CLI across all levels.
func TestPackLevelsProduceDecodableStreams(t *testing.T) {
	tmpDir := t.TempDir()
	originalContent := bytes.Repeat([]byte("level sweep content "), 10000)

	for level := 1; level <= 9; level++ {
		inPath := filepath.Join(tmpDir, "in_"+strconv.Itoa(level)+".txt")
		require.NoError(t, os.WriteFile(inPath, originalContent, 0644))

		root := cmd.GetRootCmd()
		root.SetArgs([]string{"pack", inPath, "-l", strconv.Itoa(level)})
		require.NoError(t, root.Execute())

		outPath := filepath.Join(tmpDir, "out_"+strconv.Itoa(level)+".txt")
		root.SetArgs([]string{"unpack", inPath + ".pflt", "-o", outPath})
		require.NoError(t, root.Execute())

		restored, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(originalContent, restored), "level %d round trip failed", level)
	}
}
