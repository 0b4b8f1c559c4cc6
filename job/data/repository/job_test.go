package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/ncobase/jobpanel/job/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func newRepo(t *testing.T) JobRepository {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewJobRepository(context.Background(), db)
	require.NoError(t, err)
	return repo
}

func newJob(id string, created time.Time) *structs.Job {
	params := structs.DefaultJobParameters()
	return &structs.Job{
		ID:        id,
		Kind:      structs.KindScrape,
		Params:    &params,
		Status:    structs.StatusInfo{Status: structs.StatusQueued},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCreateAndFind(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.Create(ctx, newJob("scrape_1", now)))

	got, err := repo.FindByID(ctx, "scrape_1")
	require.NoError(t, err)
	assert.Equal(t, structs.KindScrape, got.Kind)
	assert.Equal(t, structs.StatusPending, got.Status.JobStatus())
	require.NotNil(t, got.Params)
	assert.Equal(t, 50, got.Params.ItemsPerSource)
	assert.True(t, now.Equal(got.CreatedAt))
	assert.Nil(t, got.StartedAt)
}

func TestFindMissing(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := newJob("scrape_1", now)
	require.NoError(t, repo.Create(ctx, job))

	code := 2
	ended := now.Add(time.Minute)
	job.Status = structs.StatusInfo{Status: string(structs.StatusFailed), ReturnCode: &code, Error: "exit status 2"}
	job.StartedAt = &now
	job.EndedAt = &ended
	job.UpdatedAt = ended
	require.NoError(t, repo.Update(ctx, job))

	got, err := repo.FindByID(ctx, "scrape_1")
	require.NoError(t, err)
	assert.Equal(t, structs.StatusFailed, got.Status.JobStatus())
	require.NotNil(t, got.Status.ReturnCode)
	assert.Equal(t, 2, *got.Status.ReturnCode)
	require.NotNil(t, got.EndedAt)

	assert.ErrorIs(t, repo.Update(ctx, newJob("missing", now)), ErrNotFound)
}

func TestListAndStats(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, status := range []string{structs.StatusQueued, "running", "completed", "completed", "weird"} {
		job := newJob(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		job.Status.Status = status
		require.NoError(t, repo.Create(ctx, job))
	}
	test := &structs.Job{ID: "t", Kind: structs.KindTest, CreatedAt: base.Add(time.Hour), UpdatedAt: base}
	require.NoError(t, repo.Create(ctx, test))

	jobs, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "t", jobs[0].ID)
	assert.Nil(t, jobs[0].Params)
	assert.Equal(t, "e", jobs[1].ID)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[structs.StatusPending])
	assert.Equal(t, 1, stats[structs.StatusRunning])
	assert.Equal(t, 2, stats[structs.StatusCompleted])
	assert.Equal(t, 0, stats[structs.StatusFailed])
	assert.Equal(t, 2, stats[structs.StatusUnknown])
}

func TestListUnfinished(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	statuses := map[string]string{
		"scrape_queued":    structs.StatusQueued,
		"scrape_running":   string(structs.StatusRunning),
		"scrape_completed": string(structs.StatusCompleted),
		"scrape_failed":    string(structs.StatusFailed),
	}
	i := 0
	for _, id := range []string{"scrape_queued", "scrape_running", "scrape_completed", "scrape_failed"} {
		j := newJob(id, base.Add(time.Duration(i)*time.Second))
		j.Status = structs.StatusInfo{Status: statuses[id]}
		require.NoError(t, repo.Create(ctx, j))
		i++
	}

	jobs, err := repo.ListUnfinished(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "scrape_queued", jobs[0].ID)
	assert.Equal(t, "scrape_running", jobs[1].ID)
}
