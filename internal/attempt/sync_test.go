package attempt

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack/testcenter-backend/internal/model"
)

func newSynchronizer(backend Backend, record *AnswerRecord, onFailure func(SyncFailure)) *AnswerSynchronizer {
	return NewAnswerSynchronizer(backend, record, uuid.New(), uuid.New(), onFailure, zerolog.Nop())
}

func TestLocalRecordUpdatesBeforePush(t *testing.T) {
	backend := &fakeBackend{}
	release := make(chan struct{})
	backend.saveHook = func(model.SubmitAnswerRequest) error {
		<-release
		return nil
	}

	record := NewAnswerRecord()
	syncer := newSynchronizer(backend, record, nil)

	qID := uuid.New()
	optB := uuid.New()
	syncer.Select(qID, optB)

	// The push is still blocked; the record already holds the choice.
	sel, ok := record.Get(qID)
	require.True(t, ok)
	require.NotNil(t, sel)
	assert.Equal(t, optB, *sel)
	assert.True(t, syncer.InFlight(qID))

	close(release)
	syncer.Wait()
	assert.False(t, syncer.InFlight(qID))
}

func TestRapidChangesConvergeToFinalChoice(t *testing.T) {
	backend := &fakeBackend{}
	record := NewAnswerRecord()
	syncer := newSynchronizer(backend, record, nil)

	qID := uuid.New()
	optB := uuid.New()
	optC := uuid.New()

	syncer.Select(qID, optB)
	syncer.Wait()
	syncer.Clear(qID)
	syncer.Wait()
	syncer.Select(qID, optC)
	syncer.Wait()

	sel, ok := record.Get(qID)
	require.True(t, ok)
	require.NotNil(t, sel)
	assert.Equal(t, optC, *sel)

	reqs := backend.savedRequests()
	require.Len(t, reqs, 3)
	// Sequence numbers are strictly increasing per question.
	assert.Equal(t, int64(1), reqs[0].Seq)
	assert.Equal(t, int64(2), reqs[1].Seq)
	assert.Equal(t, int64(3), reqs[2].Seq)
	assert.Nil(t, reqs[1].SelectedOptionID)
	require.NotNil(t, reqs[2].SelectedOptionID)
	assert.Equal(t, optC, *reqs[2].SelectedOptionID)
}

func TestStalePushFailureIsSuppressed(t *testing.T) {
	backend := &fakeBackend{}
	firstSent := make(chan struct{})
	releaseFirst := make(chan struct{})
	backend.saveHook = func(req model.SubmitAnswerRequest) error {
		if req.Seq == 1 {
			close(firstSent)
			<-releaseFirst
			return errors.New("connection reset")
		}
		return nil
	}

	var failures []SyncFailure
	record := NewAnswerRecord()
	syncer := newSynchronizer(backend, record, func(f SyncFailure) {
		failures = append(failures, f)
	})

	qID := uuid.New()
	optB := uuid.New()
	optC := uuid.New()

	syncer.Select(qID, optB)
	<-firstSent
	// A newer write supersedes the one stuck on the wire.
	syncer.Select(qID, optC)
	// Let the newer push land, then fail the stale one.
	for i := 0; i < 100 && len(backend.savedRequests()) == 0; i++ {
		time.Sleep(time.Millisecond)
	}
	close(releaseFirst)
	syncer.Wait()

	assert.Empty(t, failures, "a failed stale push must stay silent")

	sel, ok := record.Get(qID)
	require.True(t, ok)
	require.NotNil(t, sel)
	assert.Equal(t, optC, *sel)
}

func TestLatestPushFailureReportsHook(t *testing.T) {
	pushErr := errors.New("backend unavailable")
	backend := &fakeBackend{saveErr: pushErr}

	failed := make(chan SyncFailure, 1)
	record := NewAnswerRecord()
	syncer := newSynchronizer(backend, record, func(f SyncFailure) {
		failed <- f
	})

	qID := uuid.New()
	optB := uuid.New()
	syncer.Select(qID, optB)
	syncer.Wait()

	select {
	case f := <-failed:
		assert.Equal(t, qID, f.QuestionID)
		assert.Equal(t, int64(1), f.Seq)
		assert.ErrorIs(t, f.Err, pushErr)
	default:
		t.Fatal("expected the failure hook to fire")
	}

	// The local record keeps the choice; failures never roll it back.
	sel, ok := record.Get(qID)
	require.True(t, ok)
	require.NotNil(t, sel)
	assert.Equal(t, optB, *sel)
}

func TestQuestionsSequenceIndependently(t *testing.T) {
	backend := &fakeBackend{}
	record := NewAnswerRecord()
	syncer := newSynchronizer(backend, record, nil)

	q1 := uuid.New()
	q2 := uuid.New()

	syncer.Select(q1, uuid.New())
	syncer.Wait()
	syncer.Select(q2, uuid.New())
	syncer.Wait()
	syncer.Select(q1, uuid.New())
	syncer.Wait()

	seqs := map[uuid.UUID][]int64{}
	for _, req := range backend.savedRequests() {
		seqs[req.QuestionID] = append(seqs[req.QuestionID], req.Seq)
	}
	assert.Equal(t, []int64{1, 2}, seqs[q1])
	assert.Equal(t, []int64{1}, seqs[q2])
}
