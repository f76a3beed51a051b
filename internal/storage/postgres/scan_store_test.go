package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsignal/internal/clock/system"
	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/storage"
)

var testNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

func sampleRecord() scanner.ScanRecord {
	return scanner.ScanRecord{
		Timestamp:            testNow,
		JobTitle:             "Security Analyst",
		Location:             "Austin, TX",
		TimeRange:            "7d",
		TotalJobs:            12,
		JobsWithDescriptions: 10,
		Certs: []scanner.RankedSignal{{
			Name:       "Security+",
			FullName:   "CompTIA Security+",
			Org:        "CompTIA",
			Count:      6,
			Percentage: 60.0,
			Sources:    []scanner.Source{{Title: "Analyst", Company: "Acme"}},
		}},
	}
}

func TestNewScanStoreWithPoolValidates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewScanStoreWithPool(nil, "scans", scanner.RetentionPolicy{}, system.New())
	require.Error(t, err)
	_, err = NewScanStoreWithPool(mock, "scans; DROP TABLE x", scanner.RetentionPolicy{}, system.New())
	require.Error(t, err)
	_, err = NewScanStoreWithPool(mock, "", scanner.RetentionPolicy{}, nil)
	require.Error(t, err)

	store, err := NewScanStoreWithPool(mock, "", scanner.RetentionPolicy{}, system.New())
	require.NoError(t, err)
	assert.Equal(t, "scans", store.table)
}

func TestEnsureSchemaCreatesTableAndIndex(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewScanStoreWithPool(mock, "scan_history", scanner.RetentionPolicy{}, system.New())
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scan_history").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS scan_history_timestamp_idx").
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveInsertsAndPrunes(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	retention := scanner.RetentionPolicy{MaxAgeDays: 30, MaxRows: 5}
	store, err := NewScanStoreWithPool(mock, "scans", retention, system.NewFixed(testNow))
	require.NoError(t, err)

	rec := sampleRecord()
	certs, err := storage.EncodeCerts(rec.Certs)
	require.NoError(t, err)
	cutoff, ok := storage.AgeCutoff(retention, testNow)
	require.True(t, ok)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO scans").
		WithArgs(rec.Timestamp, rec.JobTitle, rec.Location, rec.TimeRange, rec.TotalJobs, rec.JobsWithDescriptions, certs).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("DELETE FROM scans WHERE timestamp").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM scans WHERE id NOT IN").
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	res, err := store.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, scanner.SaveResult{ID: 7, PrunedByAge: 2, PrunedByCount: 1}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWithoutRetentionSkipsPruning(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewScanStoreWithPool(mock, "scans", scanner.RetentionPolicy{}, system.NewFixed(testNow))
	require.NoError(t, err)

	rec := sampleRecord()
	rec.Timestamp = time.Time{}
	rec.Certs = nil

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO scans").
		WithArgs(testNow, rec.JobTitle, rec.Location, rec.TimeRange, rec.TotalJobs, rec.JobsWithDescriptions, []byte(`[]`)).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	res, err := store.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ID)
	assert.Zero(t, res.PrunedByAge)
	assert.Zero(t, res.PrunedByCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewScanStoreWithPool(mock, "scans", scanner.RetentionPolicy{MaxRows: 3}, system.NewFixed(testNow))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO scans").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = store.Save(context.Background(), sampleRecord())
	require.ErrorContains(t, err, "insert scan")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryReturnsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewScanStoreWithPool(mock, "scans", scanner.RetentionPolicy{}, system.New())
	require.NoError(t, err)

	cols := []string{"id", "timestamp", "job_title", "location", "time_range", "total_jobs", "jobs_with_descriptions", "cert_data"}
	mock.ExpectQuery("SELECT id, timestamp").
		WithArgs(2).
		WillReturnRows(mock.NewRows(cols).
			AddRow(int64(9), testNow, "Cloud Engineer", "", "3d", 4, 4, []byte(`[{"name":"AWS SAA","count":2,"percentage":50,"sources":[]}]`)).
			AddRow(int64(8), testNow.Add(-time.Hour), "SOC Analyst", "Remote", "7d", 3, 2, []byte(`[]`)))

	history, err := store.History(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(9), history[0].ID)
	assert.Equal(t, "Cloud Engineer", history[0].JobTitle)
	require.Len(t, history[0].Certs, 1)
	assert.Equal(t, "AWS SAA", history[0].Certs[0].Name)
	assert.Equal(t, 2, history[0].Certs[0].Count)
	assert.Empty(t, history[1].Certs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingWrapsError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewScanStoreWithPool(mock, "scans", scanner.RetentionPolicy{}, system.New())
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	require.ErrorContains(t, store.Ping(context.Background()), "ping postgres")
	require.NoError(t, mock.ExpectationsWereMet())
}
