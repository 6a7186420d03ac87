package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/agentkit/internal/shell/reporter"
)

// script returns a Fetch that yields statuses in order and then repeats the
// last one.
func script(statuses ...string) (Fetch, *int) {
	calls := 0
	return func(context.Context) (string, error) {
		i := min(calls, len(statuses)-1)
		calls++
		return statuses[i], nil
	}, &calls
}

func fastOptions() Options {
	return Options{
		Description: "Waiting for runtime",
		Targets:     []string{"Ready"},
		Interval:    time.Millisecond,
		Total:       100,
	}
}

func TestForStatus_ReachesTarget(t *testing.T) {
	fetch, calls := script("Creating", "Creating", "Ready")
	rec := reporter.NewRecorder()

	status, err := ForStatus(context.Background(), fetch, fastOptions(), rec)
	require.NoError(t, err)
	assert.Equal(t, "Ready", status)
	assert.Equal(t, 3, *calls)

	require.Len(t, rec.Tasks, 1)
	task := rec.Tasks[0]
	assert.True(t, task.Closed)
	assert.Equal(t, 100.0, task.Last().Completed)
	assert.Equal(t, "Waiting for runtime: Ready", task.Last().Description)

	// Only the final update shows completion.
	for _, u := range task.Updates[:len(task.Updates)-1] {
		assert.Less(t, u.Completed, 100.0)
	}
}

func TestForStatus_DescriptionTracksStatus(t *testing.T) {
	fetch, _ := script("Creating", "Creating", "Updating", "Ready")
	rec := reporter.NewRecorder()

	_, err := ForStatus(context.Background(), fetch, fastOptions(), rec)
	require.NoError(t, err)

	var descs []string
	for _, u := range rec.Tasks[0].Updates {
		if len(descs) == 0 || descs[len(descs)-1] != u.Description {
			descs = append(descs, u.Description)
		}
	}
	assert.Equal(t, []string{
		"Waiting for runtime: Creating",
		"Waiting for runtime: Updating",
		"Waiting for runtime: Ready",
	}, descs)
}

func TestForStatus_FailureStatus(t *testing.T) {
	fetch, _ := script("Creating", "Error")
	opts := fastOptions()
	opts.Timeout = time.Minute

	start := time.Now()
	status, err := ForStatus(context.Background(), fetch, opts, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFailed))
	assert.Equal(t, "Error", status)
	assert.Less(t, time.Since(start), opts.Timeout)
}

func TestForStatus_CustomFailures(t *testing.T) {
	fetch, _ := script("Running", "Failed")
	opts := fastOptions()
	opts.Targets = []string{"Succeeded"}
	opts.Failures = []string{"Failed", "Cancelled"}

	status, err := ForStatus(context.Background(), fetch, opts, nil)
	assert.ErrorIs(t, err, ErrFailed)
	assert.Equal(t, "Failed", status)
}

func TestForStatus_Timeout(t *testing.T) {
	fetch, _ := script("Creating")
	opts := fastOptions()
	opts.Interval = 5 * time.Millisecond
	opts.Timeout = 30 * time.Millisecond

	start := time.Now()
	status, err := ForStatus(context.Background(), fetch, opts, nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "Creating", status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestForStatus_FetchError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(context.Context) (string, error) { return "", boom }

	_, err := ForStatus(context.Background(), fetch, fastOptions(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestForStatus_ContextCancelled(t *testing.T) {
	fetch, _ := script("Creating")
	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOptions()
	opts.Interval = time.Hour

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := ForStatus(ctx, fetch, opts, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForStatus_SlowFetchIsBoundedByTimeout(t *testing.T) {
	fetch := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	opts := fastOptions()
	opts.Timeout = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := ForStatus(ctx, fetch, opts, nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestForStatus_CallerDeadlineIsNotATimeout(t *testing.T) {
	fetch := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	opts := fastOptions()
	opts.Timeout = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ForStatus(ctx, fetch, opts, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTimeout)
}
