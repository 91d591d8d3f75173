package converge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// scriptedReader returns counts from a script, repeating the last value.
type scriptedReader struct {
	counts []int
	calls  int
	err    error
}

func (r *scriptedReader) FolderCount(context.Context, string, string) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	i := min(r.calls, len(r.counts)-1)
	r.calls++

	return r.counts[i], nil
}

var testFolder = caramel.Folder{Case: "caseA", ID: "1"}

func newTestPoller(reader CountReader, policy Backoff) (*Poller, *recordingSleep) {
	sleeper := &recordingSleep{}
	p := NewPoller(reader, policy, testLogger())
	p.sleepFunc = sleeper.sleep

	return p, sleeper
}

func TestPoller_NoPreviousReadsOnce(t *testing.T) {
	reader := &scriptedReader{counts: []int{42}}
	p, sleeper := newTestPoller(reader, DefaultStaleBackoff())

	count, rereads, err := p.Read(context.Background(), testFolder, 0, false)
	require.NoError(t, err)

	assert.Equal(t, 42, count)
	assert.Zero(t, rereads)
	assert.Equal(t, 1, reader.calls)
	assert.Empty(t, sleeper.delays)
}

func TestPoller_PreviousZeroIsStillAValue(t *testing.T) {
	reader := &scriptedReader{counts: []int{0, 0, 75}}
	p, _ := newTestPoller(reader, DefaultStaleBackoff())

	count, rereads, err := p.Read(context.Background(), testFolder, 0, true)
	require.NoError(t, err)

	assert.Equal(t, 75, count)
	assert.Equal(t, 2, rereads)
}

func TestPoller_StopsWhenValueMoves(t *testing.T) {
	reader := &scriptedReader{counts: []int{10, 10, 10, 60}}
	p, sleeper := newTestPoller(reader, DefaultStaleBackoff())

	count, rereads, err := p.Read(context.Background(), testFolder, 10, true)
	require.NoError(t, err)

	assert.Equal(t, 60, count)
	assert.Equal(t, 3, rereads)
	assert.Equal(t, 4, reader.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, sleeper.delays)
}

func TestPoller_PermanentStalenessBoundedAtTenRereads(t *testing.T) {
	reader := &scriptedReader{counts: []int{500}}
	p, sleeper := newTestPoller(reader, DefaultStaleBackoff())

	count, rereads, err := p.Read(context.Background(), testFolder, 500, true)
	require.NoError(t, err)

	assert.Equal(t, 500, count, "unchanged value is accepted")
	assert.Equal(t, 10, rereads)
	assert.Equal(t, 11, reader.calls, "one read plus at most ten re-reads")
	assert.Len(t, sleeper.delays, 10)
}

func TestPoller_UsesPolicyDelays(t *testing.T) {
	reader := &scriptedReader{counts: []int{5}}
	policy := ExponentialBackoff{Base: 10 * time.Millisecond, Factor: 2, Attempts: 3}
	p, sleeper := newTestPoller(reader, policy)

	_, rereads, err := p.Read(context.Background(), testFolder, 5, true)
	require.NoError(t, err)

	assert.Equal(t, 3, rereads)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond},
		sleeper.delays)
}

func TestPoller_ReadError(t *testing.T) {
	reader := &scriptedReader{err: errServer}
	p, _ := newTestPoller(reader, DefaultStaleBackoff())

	_, _, err := p.Read(context.Background(), testFolder, 1, true)
	assert.ErrorIs(t, err, caramel.ErrServerError)
}

func TestPoller_CanceledDuringSleep(t *testing.T) {
	reader := &scriptedReader{counts: []int{5}}
	p := NewPoller(reader, DefaultStaleBackoff(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, rereads, err := p.Read(ctx, testFolder, 5, true)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rereads)
	assert.Equal(t, 1, reader.calls)
}
