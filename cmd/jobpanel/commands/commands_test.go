package commands

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/jobpanel/config"
	"github.com/ncobase/jobpanel/job"
	jobRepo "github.com/ncobase/jobpanel/job/data/repository"
	"github.com/ncobase/jobpanel/job/handler"
	"github.com/ncobase/jobpanel/logging/logger"
	"github.com/ncobase/jobpanel/version"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// startService serves a job manager running command.
func startService(t *testing.T, command ...string) string {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := jobRepo.NewJobRepository(context.Background(), db)
	require.NoError(t, err)

	log := logger.NewWithWriter(io.Discard, logrus.PanicLevel)
	mgr, stop, err := job.NewManager(context.Background(), &config.Jobs{
		LogDir:       t.TempDir(),
		Command:      command,
		Workdir:      t.TempDir(),
		MaxWorkers:   1,
		QueueSize:    4,
		Timeout:      time.Minute,
		TestDuration: 20 * time.Millisecond,
	}, repo, nil, log)
	require.NoError(t, err)
	t.Cleanup(stop)

	srv := httptest.NewServer(handler.NewRouter(handler.NewJobHandler(mgr, log), log))
	t.Cleanup(srv.Close)
	return srv.URL
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRunFollowsJobToCompletion(t *testing.T) {
	url := startService(t, "sh", "-c", "echo scraping; echo finished", "scraper")

	out, _, err := execute(t, "run", "--endpoint", url, "--interval", "10ms", "--per-source", "3")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`(?m)^Started job: scrape_[0-9a-f]{32}$`), out)
	assert.Contains(t, out, "[info] CMD: sh -c echo scraping; echo finished scraper --per-source 3 --rate-limit 1 --timeout 20\n")
	assert.Contains(t, out, "\nscraping\nfinished\n")
	assert.Contains(t, out, "\nStatus: completed\n")
	assert.Contains(t, out, "Recent jobs:")
}

func TestRunReportsFailedJob(t *testing.T) {
	url := startService(t, "sh", "-c", "echo broken; exit 2", "scraper")

	out, _, err := execute(t, "run", "--endpoint", url, "--interval", "10ms")
	require.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, out, "[error] Scraper exited with code 2\n")
	assert.Contains(t, out, "\nStatus: failed\n")
}

func TestRunRejectsInvalidParameters(t *testing.T) {
	url := startService(t, "true")

	out, _, err := execute(t, "run", "--endpoint", url, "--per-source", "0")
	require.Error(t, err)
	assert.Contains(t, out, "Failed to start: ")
}

func TestRunStartFailure(t *testing.T) {
	out, _, err := execute(t, "run", "--endpoint", "http://127.0.0.1:1", "--interval", "10ms")
	require.Error(t, err)
	assert.Contains(t, out, "Failed to start: ")
}

func TestTestJob(t *testing.T) {
	url := startService(t)

	out, _, err := execute(t, "test-job", "--endpoint", url)
	require.NoError(t, err)
	assert.Regexp(t, `^test_[0-9a-f]{32}\n$`, out)

	out, _, err = execute(t, "test-job", "--endpoint", url, "--follow", "--interval", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, "[info] Test job completed\n")
	assert.Contains(t, out, "\nStatus: completed\n")
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info.GoVersion)

	out, _, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: ")
}

func TestMissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	require.NoError(t, err)

	_, _, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "test-job")
	assert.Error(t, err)
}
