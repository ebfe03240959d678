package archive

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/api/internal/model"
)

var columns = []string{
	"id", "type", "priority", "status", "owner_id", "company_id", "candidate_id", "file_name",
	"result", "error", "created_at", "started_at", "finished_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestSave(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	finished := time.Now().UTC()
	job := &model.Job{
		ID: "job-1", Type: model.JobTypeBiasDetection, Priority: model.PriorityLow,
		Status: model.JobStatusCompleted, OwnerID: "u1", CompanyID: "acme",
		Result: []byte(`{"fairnessScore":0.8}`), CreatedAt: finished.Add(-time.Minute), FinishedAt: &finished,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processing_jobs")).
		WithArgs("job-1", "bias-detection", "low", "completed", "u1", "acme", "", "",
			pgxmock.AnyArg(), "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), job))
}

func TestGet(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	started := created.Add(time.Second)
	finished := created.Add(time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM processing_jobs")).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			"job-1", "resume", "medium", "failed", "u1", "acme", "cand-9", "cv.pdf",
			[]byte(nil), "worker lost", created, &started, &finished,
		))

	job, err := repo.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.JobTypeResume, job.Type)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "worker lost", job.Error)
	assert.Equal(t, "cand-9", job.CandidateID)
	assert.Equal(t, created, job.CreatedAt)
	require.NotNil(t, job.FinishedAt)
	assert.Equal(t, finished, *job.FinishedAt)
	assert.Empty(t, job.Result)
}

func TestGet_Unknown(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM processing_jobs")).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	job, err := repo.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS processing_jobs")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, NewRepository(mock).Migrate(context.Background()))
}
