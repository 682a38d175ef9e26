package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/db"
)

// newTestStore connects to the database named by PIXEL_WARDEN_TEST_DSN and applies
// the migrations. Tests using it are skipped when the variable is not set.
func newTestStore(t *testing.T) (Store, *sqlx.DB) {
	t.Helper()
	dsn := os.Getenv("PIXEL_WARDEN_TEST_DSN")
	if dsn == "" {
		t.Skip("PIXEL_WARDEN_TEST_DSN not set")
	}
	conn, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, (&db.DB{DB: conn}).RunMigrations())
	return NewStore(conn), conn
}

type fixture struct {
	projectID string
	bucketA   string
	bucketB   string
}

func seed(t *testing.T, conn *sqlx.DB) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var accountID string
	slug := "acme-" + time.Now().Format("150405.000000000")

	require.NoError(t, conn.GetContext(ctx, &accountID,
		`INSERT INTO accounts (slug) VALUES ($1) RETURNING id`, slug))
	require.NoError(t, conn.GetContext(ctx, &f.projectID,
		`INSERT INTO projects (name, account_id) VALUES ('web', $1) RETURNING id`, accountID))
	require.NoError(t, conn.GetContext(ctx, &f.bucketA,
		`INSERT INTO screenshot_buckets (project_id, name, commit, branch) VALUES ($1, 'default', 'aaa', 'main') RETURNING id`, f.projectID))
	require.NoError(t, conn.GetContext(ctx, &f.bucketB,
		`INSERT INTO screenshot_buckets (project_id, name, commit, branch) VALUES ($1, 'default', 'bbb', 'feature') RETURNING id`, f.projectID))
	return f
}

func TestPostgresStore_BuildNumbersAreSequentialPerProject(t *testing.T) {
	store, conn := newTestStore(t)
	f := seed(t, conn)
	ctx := context.Background()

	const n = 8
	numbers := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := &core.Build{ProjectID: f.projectID, CompareScreenshotBucketID: f.bucketB, BaseScreenshotBucketID: &f.bucketA}
			if err := store.CreateBuild(ctx, nil, b); err == nil {
				numbers[i] = b.Number
			}
		}()
	}
	wg.Wait()

	seen := map[int]bool{}
	for _, num := range numbers {
		require.NotZero(t, num)
		assert.False(t, seen[num], "duplicate build number %d", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestPostgresStore_RejectsSameBuckets(t *testing.T) {
	store, conn := newTestStore(t)
	f := seed(t, conn)

	b := &core.Build{ProjectID: f.projectID, CompareScreenshotBucketID: f.bucketA, BaseScreenshotBucketID: &f.bucketA}
	err := store.CreateBuild(context.Background(), nil, b)
	assert.ErrorIs(t, err, core.ErrSameBuckets)
}

func TestPostgresStore_NotificationLifecycle(t *testing.T) {
	store, conn := newTestStore(t)
	f := seed(t, conn)
	ctx := context.Background()

	build := &core.Build{ProjectID: f.projectID, CompareScreenshotBucketID: f.bucketB}
	require.NoError(t, store.CreateBuild(ctx, nil, build))

	n, err := store.InsertNotification(ctx, nil, build.ID, core.NotificationQueued)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, n.JobStatus)

	claimed, err := store.ClaimNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusProgress, claimed.JobStatus)
	assert.Equal(t, 1, claimed.Attempts)

	_, err = store.ClaimNotification(ctx, n.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound), "a claimed notification cannot be claimed twice")

	nc, err := store.LoadNotificationContext(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, build.ID, nc.Build.ID)
	assert.Equal(t, "bbb", nc.Commit())
	assert.Nil(t, nc.GitHubRepository)

	require.NoError(t, store.RetryNotification(ctx, n.ID, "boom", time.Now().Add(-time.Second)))
	due, err := store.DueNotifications(ctx, time.Now(), 100)
	require.NoError(t, err)
	assert.Contains(t, due, n.ID)

	_, err = store.ClaimNotification(ctx, n.ID)
	require.NoError(t, err)
	require.NoError(t, store.CompleteNotification(ctx, n.ID))

	got, err := store.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusComplete, got.JobStatus)
	assert.Equal(t, 2, got.Attempts)
	assert.Nil(t, got.LastError)
}

func TestPostgresStore_RollbackDropsNotification(t *testing.T) {
	store, conn := newTestStore(t)
	f := seed(t, conn)
	ctx := context.Background()

	build := &core.Build{ProjectID: f.projectID, CompareScreenshotBucketID: f.bucketB}
	require.NoError(t, store.CreateBuild(ctx, nil, build))

	enqueued := false
	errAbort := errors.New("abort")
	err := store.InTx(ctx, func(tx *Tx) error {
		if _, err := store.InsertNotification(ctx, tx, build.ID, core.NotificationProgress); err != nil {
			return err
		}
		tx.AfterCommit(func() { enqueued = true })
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	assert.False(t, enqueued)

	rows, err := store.ListNotifications(ctx, build.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
