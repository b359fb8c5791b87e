package filegen

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/platform/blobstore"
	"github.com/maven/accumulator/internal/platform/db"
	"github.com/maven/accumulator/internal/platform/locker"
)

type failingStore struct {
	blobstore.BlobStore
	err error
}

func (s *failingStore) Upload(context.Context, string, string, io.Reader) (*blobstore.BlobMetadata, error) {
	return nil, s.err
}

// racingRepo moves one mapping out of PAID before the submitter marks it.
type racingRepo struct {
	*accumulation.MemoryRepository
	raceID int64
}

func (r *racingRepo) MarkSubmitted(ctx context.Context, s accumulation.Submission) (bool, error) {
	if s.MappingID == r.raceID {
		if err := r.MemoryRepository.UpdateResponse(ctx, s.MappingID, accumulation.StatusRefunded, ""); err != nil {
			return false, err
		}
	}
	return r.MemoryRepository.MarkSubmitted(ctx, s)
}

func seedPaid(t *testing.T, f *fixture) {
	t.Helper()
	f.addRequest(1001, day(2024, 3, 6))
	f.addCost(1001, 12300, 12390)
	f.addMapping(t, bcbsPayer, 1001, accumulation.StatusPaid, false)

	f.addRequest(1002, day(2024, 3, 7))
	f.addCost(1002, 4000, 4500)
	f.addMapping(t, bcbsPayer, 1002, accumulation.StatusPaid, false)
}

func TestSubmitter_UploadsThenMarksSubmitted(t *testing.T) {
	f := newFixture()
	seedPaid(t, f)
	store := blobstore.NewInMemoryBlobStore()
	s := NewSubmitter(f.mappings, store, locker.NewMemoryLocker(), db.NoopTransactor{}, time.Minute, testLogger())

	g := NewBCBSMAGenerator(bcbsPayer, f.sources(), Scope{}, runTime, testLogger())
	res, err := s.Submit(context.Background(), g)
	require.NoError(t, err)

	assert.True(t, res.Uploaded)
	assert.Equal(t, "bcbs_ma/Maven_20240601120000.csv", res.ObjectKey)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 2, res.Submitted)
	assert.Zero(t, res.Stale)

	objects, err := store.List(context.Background(), "bcbs_ma/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "text/csv", objects[0].ContentType)

	m, ok := f.mappings.Get(1)
	require.True(t, ok)
	assert.Equal(t, accumulation.StatusSubmitted, m.Status)
	require.NotNil(t, m.AccumulationUniqueID)
	assert.Equal(t, UniqueIDFor(1), *m.AccumulationUniqueID)
	require.NotNil(t, m.ReportFileName)
	assert.Equal(t, "Maven_20240601120000.csv", *m.ReportFileName)
	assert.Equal(t, int64(12300), *m.Deductible)

	// A second run finds nothing left to submit.
	again, err := s.Submit(context.Background(), NewBCBSMAGenerator(bcbsPayer, f.sources(), Scope{}, runTime.Add(time.Hour), testLogger()))
	require.NoError(t, err)
	assert.False(t, again.Uploaded)
	assert.Zero(t, again.Rows)
}

func TestSubmitter_UploadFailureMutatesNothing(t *testing.T) {
	f := newFixture()
	seedPaid(t, f)
	boom := errors.New("bucket unavailable")
	s := NewSubmitter(f.mappings, &failingStore{err: boom}, locker.NewMemoryLocker(), db.NoopTransactor{}, time.Minute, testLogger())

	_, err := s.Submit(context.Background(), NewBCBSMAGenerator(bcbsPayer, f.sources(), Scope{}, runTime, testLogger()))
	require.ErrorIs(t, err, boom)

	assert.Equal(t, accumulation.StatusPaid, f.status(t, 1))
	assert.Equal(t, accumulation.StatusPaid, f.status(t, 2))
}

func TestSubmitter_LockHeld(t *testing.T) {
	f := newFixture()
	seedPaid(t, f)
	locks := locker.NewMemoryLocker()
	_, acquired, err := locks.TryLock(context.Background(), LockKey("BCBS_MA"), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	store := blobstore.NewInMemoryBlobStore()
	s := NewSubmitter(f.mappings, store, locks, db.NoopTransactor{}, time.Minute, testLogger())
	_, err = s.Submit(context.Background(), NewBCBSMAGenerator(bcbsPayer, f.sources(), Scope{}, runTime, testLogger()))
	require.ErrorIs(t, err, locker.ErrNotAcquired)

	objects, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects)
	assert.Equal(t, accumulation.StatusPaid, f.status(t, 1))
}

func TestSubmitter_CountsStaleRows(t *testing.T) {
	f := newFixture()
	seedPaid(t, f)
	repo := &racingRepo{MemoryRepository: f.mappings, raceID: 2}
	s := NewSubmitter(repo, blobstore.NewInMemoryBlobStore(), locker.NewMemoryLocker(), db.NoopTransactor{}, time.Minute, testLogger())

	res, err := s.Submit(context.Background(), NewBCBSMAGenerator(bcbsPayer, f.sources(), Scope{}, runTime, testLogger()))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Submitted)
	assert.Equal(t, 1, res.Stale)
	assert.Equal(t, accumulation.StatusRefunded, f.status(t, 2))
}

func TestSubmitter_ClaimStatusLeavesMappingsSubmitted(t *testing.T) {
	f := newFixture()
	f.addRequest(1001, day(2024, 3, 6))
	f.addSubmitted(t, 1001, "dddd0000000000000000000000000001")

	store := blobstore.NewInMemoryBlobStore()
	s := NewSubmitter(f.mappings, store, locker.NewMemoryLocker(), db.NoopTransactor{}, time.Minute, testLogger())
	res, err := s.Submit(context.Background(), NewClaimStatusGenerator(bcbsPayer, f.sources(), Scope{}, claimStatusConfig, runTime, testLogger()))
	require.NoError(t, err)

	assert.True(t, res.Uploaded)
	assert.Equal(t, "bcbs_ma/Maven_BCBS_MA_276_status_request_20240601_120000.edi", res.ObjectKey)
	assert.Zero(t, res.Submitted)
	assert.Equal(t, accumulation.StatusSubmitted, f.status(t, 1))
}
