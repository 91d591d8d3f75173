package converge

import (
	"context"
	"io"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// testLogger discards output so test runs stay quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noopSleep returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// recordingSleep captures every requested delay.
type recordingSleep struct {
	mu     stdsync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.delays = append(r.delays, d)

	return nil
}

// fakeFolder models one folder on an eventually consistent service.
type fakeFolder struct {
	count int

	// ceiling caps the count samples can reach (0 = unlimited), modelling
	// an exhausted document pool.
	ceiling int

	// redundancy is the fraction of each sample that lands on documents
	// already present.
	redundancy float64

	// staleAfterSample is how many reads after a sample still show the old
	// count.
	staleAfterSample int
	staleLeft        int
	shown            int

	// drainAfter is how many reads after a purge it takes to show zero
	// (-1 = never).
	drainAfter int
	purging    bool
	purgeReads int

	reads   int
	samples []int
	purges  int
	deleted bool

	readErr   error
	sampleErr error
	deleteErr error
}

// fakeClient is an in-memory ResourceClient.
type fakeClient struct {
	mu       stdsync.Mutex
	listings map[string][]caramel.Folder
	docs     map[string]int
	folders  map[string]*fakeFolder
	listErr  map[string]error
	docsErr  map[string]error

	// onSample runs after each accepted sample, outside the lock.
	onSample func(total int)
	total    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		listings: make(map[string][]caramel.Folder),
		docs:     make(map[string]int),
		folders:  make(map[string]*fakeFolder),
		listErr:  make(map[string]error),
		docsErr:  make(map[string]error),
	}
}

func key(caseName, id string) string {
	return caseName + "/" + id
}

// addFolder registers a folder with a starting count and returns it for
// further tuning.
func (c *fakeClient) addFolder(caseName, id string, count int) *fakeFolder {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := &fakeFolder{count: count, drainAfter: 1}
	c.folders[key(caseName, id)] = f
	c.listings[caseName] = append(c.listings[caseName],
		caramel.Folder{Case: caseName, ID: id, URI: "/case/" + caseName + "/folder/" + id})

	if _, ok := c.docs[caseName]; !ok {
		c.docs[caseName] = 1_000_000
	}

	return f
}

func (c *fakeClient) folder(caseName, id string) *fakeFolder {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.folders[key(caseName, id)]
}

func (c *fakeClient) ListFolders(_ context.Context, caseName string) ([]caramel.Folder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.listErr[caseName]; err != nil {
		return nil, err
	}

	folders, ok := c.listings[caseName]
	if !ok {
		return nil, &caramel.APIError{StatusCode: 404, Err: caramel.ErrNotFound}
	}

	return append([]caramel.Folder(nil), folders...), nil
}

func (c *fakeClient) CaseDocumentCount(_ context.Context, caseName string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.docsErr[caseName]; err != nil {
		return 0, err
	}

	return c.docs[caseName], nil
}

func (c *fakeClient) FolderCount(_ context.Context, caseName, folderID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.folders[key(caseName, folderID)]
	if !ok {
		return 0, &caramel.APIError{StatusCode: 404, Err: caramel.ErrNotFound}
	}

	f.reads++

	if f.readErr != nil {
		return 0, f.readErr
	}

	if f.purging {
		f.purgeReads++
		if f.drainAfter >= 0 && f.purgeReads >= f.drainAfter {
			f.count = 0
			f.purging = false
		}

		return f.count, nil
	}

	if f.staleLeft > 0 {
		f.staleLeft--

		return f.shown, nil
	}

	return f.count, nil
}

func (c *fakeClient) Sample(_ context.Context, caseName, folderID string, n int) error {
	c.mu.Lock()

	f, ok := c.folders[key(caseName, folderID)]
	if !ok {
		c.mu.Unlock()

		return &caramel.APIError{StatusCode: 404, Err: caramel.ErrNotFound}
	}

	if f.sampleErr != nil {
		c.mu.Unlock()

		return f.sampleErr
	}

	if n < 1 || n > caramel.MaxSampleSize {
		c.mu.Unlock()

		return caramel.ErrBadSampleSize
	}

	f.samples = append(f.samples, n)
	f.shown = f.count
	f.staleLeft = f.staleAfterSample

	added := n - int(float64(n)*f.redundancy)
	f.count += added

	if f.ceiling > 0 && f.count > f.ceiling {
		f.count = f.ceiling
	}

	c.total++
	total := c.total
	hook := c.onSample
	c.mu.Unlock()

	if hook != nil {
		hook(total)
	}

	return nil
}

func (c *fakeClient) Purge(_ context.Context, caseName, folderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.folders[key(caseName, folderID)]
	if !ok {
		return &caramel.APIError{StatusCode: 404, Err: caramel.ErrNotFound}
	}

	f.purges++
	f.purging = true
	f.purgeReads = 0

	return nil
}

func (c *fakeClient) DeleteFolder(_ context.Context, caseName, folderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.folders[key(caseName, folderID)]
	if !ok {
		return &caramel.APIError{StatusCode: 404, Err: caramel.ErrNotFound}
	}

	if f.deleteErr != nil {
		return f.deleteErr
	}

	f.deleted = true

	return nil
}

// touched reports whether any folder of the case was read or mutated.
func (c *fakeClient) touched(caseName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, folder := range c.listings[caseName] {
		f := c.folders[key(caseName, folder.ID)]
		if f.reads > 0 || len(f.samples) > 0 || f.purges > 0 || f.deleted {
			return true
		}
	}

	return false
}

// errServer is a transient server failure as the client reports it.
var errServer = &caramel.APIError{StatusCode: 503, Err: caramel.ErrServerError}

// newTestController builds a controller that never really sleeps.
func newTestController(client ResourceClient, settings Settings) *Controller {
	c := NewController(client, settings, testLogger())
	c.setSleep(noopSleep)

	return c
}

// newTestOrchestrator builds an orchestrator whose controllers never sleep.
func newTestOrchestrator(client ResourceClient, opts ...OrchestratorOption) *Orchestrator {
	o := NewOrchestrator(client, testLogger(), opts...)
	o.newController = func(settings Settings) *Controller {
		return newTestController(client, settings)
	}

	return o
}
