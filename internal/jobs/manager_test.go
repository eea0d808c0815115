package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickshelf/qcom-scraper/internal/models"
)

type stubRunner struct {
	mu   sync.Mutex
	runs int
}

func (r *stubRunner) Run(_ context.Context, rows []models.InputRow, _ string) []*models.AvailabilityRecord {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	records := make([]*models.AvailabilityRecord, len(rows))
	for i, row := range rows {
		records[i] = models.NewAvailabilityRecord(row.URL, row.Pincode, models.PlatformBlinkit)
	}
	return records
}

func testRows() []models.InputRow {
	return []models.InputRow{
		{URL: "https://blinkit.com/prn/milk/prid/1", Pincode: "560001"},
		{URL: "https://blinkit.com/prn/bread/prid/2", Pincode: "560001"},
	}
}

func TestSubmitAndGet(t *testing.T) {
	m := NewManager(&stubRunner{})

	job, err := m.Submit(testRows(), "560001")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, 2, job.RowsTotal)

	got, ok := m.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)

	_, ok = m.Get("no-such-job")
	assert.False(t, ok)
}

func TestSubmitRejectsEmptyBatch(t *testing.T) {
	m := NewManager(&stubRunner{})

	_, err := m.Submit(nil, "560001")
	assert.Error(t, err)
}

func TestWorkCompletesJob(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Work(ctx)

	job, err := m.Submit(testRows(), "560001")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := m.Get(job.ID)
		return ok && got.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, _ := m.Get(job.ID)
	assert.Equal(t, 2, got.RowsDone)
	assert.Len(t, got.Results, 2)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
}

func TestGetReturnsSnapshot(t *testing.T) {
	m := NewManager(&stubRunner{})

	job, err := m.Submit(testRows(), "560001")
	require.NoError(t, err)

	snapshot, ok := m.Get(job.ID)
	require.True(t, ok)
	snapshot.Status = StatusFailed

	fresh, _ := m.Get(job.ID)
	assert.Equal(t, StatusPending, fresh.Status, "mutating a snapshot must not touch stored state")
}
