package main

import (
	"bytes"
	"context"
	"testing"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/internal/queue"
	"construction-safety-assistant/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIngester struct {
	dirs   []string
	files  []string
	report *services.IngestReport
}

func (s *stubIngester) IngestFile(_ context.Context, path string) (int, error) {
	s.files = append(s.files, path)
	return 7, nil
}

func (s *stubIngester) IngestDir(_ context.Context, dir string) (*services.IngestReport, error) {
	s.dirs = append(s.dirs, dir)
	return s.report, nil
}

func setupIngestTest(t *testing.T, stub *stubIngester) *bytes.Buffer {
	t.Helper()
	old := newIngester
	newIngester = func(context.Context, *config.Config) (queue.Ingester, func(), error) {
		return stub, func() {}, nil
	}
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	t.Cleanup(func() {
		newIngester = old
		rootCmd.SetArgs(nil)
		dataDir, filePath, enqueue = "", "", false
	})
	return buf
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest", rootCmd.Use)
	assert.NotNil(t, rootCmd.Flags().Lookup("data_dir"))
}

func TestRootCmd_IngestsDirectory(t *testing.T) {
	stub := &stubIngester{report: &services.IngestReport{Files: 2, Chunks: 9}}
	out := setupIngestTest(t, stub)
	dir := t.TempDir()

	rootCmd.SetArgs([]string{"--data_dir", dir})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, []string{dir}, stub.dirs)
	assert.Contains(t, out.String(), "Added 9 chunks from 2 files")
}

func TestRootCmd_EmptyDirectory(t *testing.T) {
	stub := &stubIngester{report: &services.IngestReport{}}
	out := setupIngestTest(t, stub)

	rootCmd.SetArgs([]string{"--data_dir", t.TempDir()})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "No PDFs found")
}

func TestRootCmd_FailedFilesReturnError(t *testing.T) {
	stub := &stubIngester{report: &services.IngestReport{Files: 1, Chunks: 2, Failed: map[string]string{"bad.pdf": "boom"}}}
	setupIngestTest(t, stub)

	rootCmd.SetArgs([]string{"--data_dir", t.TempDir()})
	assert.Error(t, rootCmd.Execute())
}

func TestRootCmd_SingleFile(t *testing.T) {
	stub := &stubIngester{}
	out := setupIngestTest(t, stub)

	rootCmd.SetArgs([]string{"--file", "manual.pdf"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, []string{"manual.pdf"}, stub.files)
	assert.Contains(t, out.String(), "Added 7 chunks")
}

func TestRootCmd_EnqueueNeedsRedis(t *testing.T) {
	t.Setenv("CW_REDIS_URL", "")
	setupIngestTest(t, &stubIngester{})

	rootCmd.SetArgs([]string{"--enqueue"})
	assert.Error(t, rootCmd.Execute())
}
