package reaper

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3leaps/gonuke/pkg/output"
	"github.com/3leaps/gonuke/pkg/provider"
)

// recordingWriter captures audit records for assertions.
type recordingWriter struct {
	mu        sync.Mutex
	deleted   []*output.DeletedRecord
	errs      []*output.ErrorRecord
	progress  []*output.ProgressRecord
	summaries []*output.SummaryRecord
}

func (w *recordingWriter) WriteDeleted(ctx context.Context, rec *output.DeletedRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deleted = append(w.deleted, rec)
	return nil
}

func (w *recordingWriter) WriteError(ctx context.Context, rec *output.ErrorRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errs = append(w.errs, rec)
	return nil
}

func (w *recordingWriter) WriteProgress(ctx context.Context, rec *output.ProgressRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.progress = append(w.progress, rec)
	return nil
}

func (w *recordingWriter) WriteSummary(ctx context.Context, rec *output.SummaryRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summaries = append(w.summaries, rec)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

// mockProvider is a concurrency-safe in-memory Provider for pipeline tests.
//
// Versioned listings are keyed by prefix: versions holds the recursive
// listing, direct the delimiter-bounded one. Pagination is simulated by
// pageSize, with the page index carried in the key marker.
type mockProvider struct {
	mu sync.Mutex

	topLevel   provider.TopLevelListing
	afterPurge *provider.TopLevelListing
	versions   map[string][]provider.ObjectRef
	direct     map[string][]provider.ObjectRef
	pageSize   int

	failKeys      map[string]bool
	versioningErr error
	listErr       map[string]error

	deleted           []provider.ObjectRef
	batchCalls        int
	batchSizes        []int
	topLevelCalls     int
	versioningCalls   int
	deleteBucketCalls int
	bareListCalls     int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		versions: make(map[string][]provider.ObjectRef),
		direct:   make(map[string][]provider.ObjectRef),
		failKeys: make(map[string]bool),
		listErr:  make(map[string]error),
	}
}

func (m *mockProvider) ListTopLevel(ctx context.Context, prefix string) (*provider.TopLevelListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topLevelCalls++
	if m.topLevelCalls > 1 && m.afterPurge != nil {
		listing := *m.afterPurge
		return &listing, nil
	}
	listing := m.topLevel
	return &listing, nil
}

func (m *mockProvider) ListVersions(ctx context.Context, opts provider.VersionListOptions) (*provider.VersionListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.listErr[opts.Prefix]; err != nil {
		return nil, err
	}

	var refs []provider.ObjectRef
	if opts.Delimiter != "" {
		refs = m.direct[opts.Prefix]
	} else {
		refs = m.versions[opts.Prefix]
		if opts.Prefix == "" {
			m.bareListCalls++
		}
	}

	start := 0
	if opts.KeyMarker != "" {
		start, _ = strconv.Atoi(opts.KeyMarker)
	}
	if start >= len(refs) {
		return &provider.VersionListResult{}, nil
	}

	end := len(refs)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}

	result := &provider.VersionListResult{
		Refs: append([]provider.ObjectRef(nil), refs[start:end]...),
	}
	if end < len(refs) {
		result.IsTruncated = true
		result.NextKeyMarker = strconv.Itoa(end)
	}
	return result, nil
}

func (m *mockProvider) BatchDelete(ctx context.Context, refs []provider.ObjectRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(refs))

	for _, r := range refs {
		if m.failKeys[r.Key] {
			return errors.New("batch rejected")
		}
	}
	m.deleted = append(m.deleted, refs...)
	return nil
}

func (m *mockProvider) EnableVersioning(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versioningCalls++
	return m.versioningErr
}

func (m *mockProvider) HeadBucket(ctx context.Context) error { return nil }

func (m *mockProvider) DeleteBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteBucketCalls++
	return nil
}

func (m *mockProvider) Close() error { return nil }

func (m *mockProvider) deletedKeys() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make(map[string]bool, len(m.deleted))
	for _, r := range m.deleted {
		keys[r.Key] = true
	}
	return keys
}

func refs(prefix string, n int) []provider.ObjectRef {
	out := make([]provider.ObjectRef, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, provider.ObjectRef{
			Key:       prefix + "obj-" + strconv.Itoa(i),
			VersionID: "v" + strconv.Itoa(i),
		})
	}
	return out
}

func TestReaper_PurgeDeletesEverything(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{
		CommonPrefixes: []string{"a/", "b/"},
		HasObjects:     true,
	}
	m.versions["a/"] = refs("a/", 7)
	m.versions["b/"] = refs("b/", 5)
	m.direct[""] = refs("", 3)

	r := New(m, zap.NewNop(), Config{BatchSize: 4, MaxQueue: 100, MaxThreads: 100})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(15), summary.Found)
	assert.Equal(t, int64(15), summary.Deleted)
	assert.Equal(t, 3, summary.SubPrefixes)
	assert.Equal(t, 3, summary.ListWorkers)
	assert.Equal(t, 6, summary.DeleteWorkers)
	assert.Equal(t, int64(0), summary.Errors)
	assert.False(t, summary.BucketDeleted)

	assert.Equal(t, 1, m.versioningCalls)
	assert.Len(t, m.deletedKeys(), 15)
	// The residual pass must not re-enumerate the whole bucket.
	assert.Equal(t, 0, m.bareListCalls)
}

func TestReaper_PaginatedListing(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{CommonPrefixes: []string{"a/"}}
	m.versions["a/"] = refs("a/", 9)
	m.pageSize = 2

	r := New(m, zap.NewNop(), Config{BatchSize: 100, MaxQueue: 100, MaxThreads: 100})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(9), summary.Found)
	assert.Equal(t, int64(9), summary.Deleted)
}

func TestReaper_DiscardsFailedBatches(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{CommonPrefixes: []string{"a/"}}
	m.versions["a/"] = refs("a/", 5)
	m.failKeys["a/obj-2"] = true

	// BatchSize 1 makes each ref its own batch, so exactly one is lost.
	w := &recordingWriter{}
	r := New(m, zap.NewNop(), Config{BatchSize: 1, MaxQueue: 100, MaxThreads: 100}).WithWriter(w)
	summary, err := r.Run(context.Background())
	require.NoError(t, err, "batch failures must not fail the run")

	assert.Equal(t, int64(5), summary.Found)
	assert.Equal(t, int64(4), summary.Deleted)
	assert.Equal(t, int64(1), summary.Errors)
	assert.False(t, m.deletedKeys()["a/obj-2"])

	// The lost batch leaves an audit trail.
	require.Len(t, w.errs, 1)
	assert.Equal(t, output.ErrCodeBatchDeleteFailed, w.errs[0].Code)
	assert.Equal(t, 1, w.errs[0].BatchSize)
	assert.Len(t, w.deleted, 4)
	require.Len(t, w.summaries, 1)
	assert.Equal(t, int64(4), w.summaries[0].Deleted)
}

func TestReaper_AbandonsFailedSubPrefix(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{CommonPrefixes: []string{"a/", "b/"}}
	m.versions["a/"] = refs("a/", 4)
	m.listErr["b/"] = errors.New("listing exploded")

	w := &recordingWriter{}
	r := New(m, zap.NewNop(), Config{BatchSize: 10, MaxQueue: 100, MaxThreads: 100}).WithWriter(w)
	summary, err := r.Run(context.Background())
	require.NoError(t, err, "an abandoned sub-prefix must not fail the run")

	// Sibling prefixes still complete.
	assert.Equal(t, int64(4), summary.Found)
	assert.Equal(t, int64(4), summary.Deleted)
	assert.Equal(t, int64(1), summary.Errors)

	// The abandoned sub-prefix leaves an audit trail naming the prefix.
	require.Len(t, w.errs, 1)
	assert.Equal(t, output.ErrCodeListFailed, w.errs[0].Code)
	assert.Equal(t, "b/", w.errs[0].Prefix)
	assert.Contains(t, w.errs[0].Message, "listing exploded")
}

func TestReaper_EmptyBucket(t *testing.T) {
	m := newMockProvider()

	r := New(m, zap.NewNop(), Config{BatchSize: 10, MaxQueue: 10, MaxThreads: 100})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SubPrefixes)
	assert.Equal(t, 0, summary.ListWorkers)
	assert.Equal(t, 0, summary.DeleteWorkers)
	assert.Equal(t, int64(0), summary.Found)
	assert.Equal(t, 0, m.batchCalls)
}

func TestReaper_DryRunMakesNoDeleteCalls(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{CommonPrefixes: []string{"a/"}}
	m.versions["a/"] = refs("a/", 6)
	m.afterPurge = &provider.TopLevelListing{}

	r := New(m, zap.NewNop(), Config{
		BatchSize: 2, MaxQueue: 100, MaxThreads: 100,
		DryRun: true, DeleteBucket: true,
	})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	// Accounting is identical to a live run, but nothing is touched.
	assert.Equal(t, int64(6), summary.Found)
	assert.Equal(t, int64(6), summary.Deleted)
	assert.Equal(t, 0, m.batchCalls)
	assert.Equal(t, 0, m.deleteBucketCalls)
	assert.False(t, summary.BucketDeleted)
}

func TestReaper_DeleteBucketAfterRootPurge(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{CommonPrefixes: []string{"a/"}}
	m.versions["a/"] = refs("a/", 2)
	m.afterPurge = &provider.TopLevelListing{}

	r := New(m, zap.NewNop(), Config{
		BatchSize: 10, MaxQueue: 10, MaxThreads: 100,
		DeleteBucket: true,
	})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.BucketDeleted)
	assert.Equal(t, 1, m.deleteBucketCalls)
}

func TestReaper_DeleteBucketSkippedForPrefixTarget(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{CommonPrefixes: []string{"x/a/"}}
	m.versions["x/a/"] = refs("x/a/", 2)

	r := New(m, zap.NewNop(), Config{
		Prefix:    "x/",
		BatchSize: 10, MaxQueue: 10, MaxThreads: 100,
		DeleteBucket: true,
	})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.BucketDeleted)
	assert.Equal(t, 0, m.deleteBucketCalls)
}

func TestReaper_DeleteBucketSkippedWhenNotEmpty(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{CommonPrefixes: []string{"a/"}}
	m.versions["a/"] = refs("a/", 2)
	m.afterPurge = &provider.TopLevelListing{HasObjects: true}

	r := New(m, zap.NewNop(), Config{
		BatchSize: 10, MaxQueue: 10, MaxThreads: 100,
		DeleteBucket: true,
	})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.BucketDeleted)
	assert.Equal(t, 0, m.deleteBucketCalls)
}

func TestReaper_CancelledContext(t *testing.T) {
	m := newMockProvider()
	m.topLevel = provider.TopLevelListing{CommonPrefixes: []string{"a/", "b/"}}
	m.versions["a/"] = refs("a/", 100)
	m.versions["b/"] = refs("b/", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(m, zap.NewNop(), Config{BatchSize: 10, MaxQueue: 10, MaxThreads: 100})
	_, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReaper_EnableVersioningFailureIsFatal(t *testing.T) {
	m := newMockProvider()
	m.versioningErr = errors.New("access denied")

	r := New(m, zap.NewNop(), Config{BatchSize: 10, MaxQueue: 10, MaxThreads: 100})
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, m.batchCalls)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{BatchSize: 100, MaxQueue: 1000, MaxThreads: 10},
		},
		{
			name:    "zero batch size",
			cfg:     Config{MaxQueue: 1000, MaxThreads: 10},
			wantErr: "BatchSize",
		},
		{
			name:    "batch size above bulk delete limit",
			cfg:     Config{BatchSize: MaxBatchSize + 1, MaxQueue: 1000, MaxThreads: 10},
			wantErr: "at most 1000",
		},
		{
			name: "batch size at bulk delete limit",
			cfg:  Config{BatchSize: MaxBatchSize, MaxQueue: 1000, MaxThreads: 10},
		},
		{
			name:    "zero queue",
			cfg:     Config{BatchSize: 100, MaxThreads: 10},
			wantErr: "MaxQueue",
		},
		{
			name:    "threads below floor",
			cfg:     Config{BatchSize: 100, MaxQueue: 1000, MaxThreads: 2},
			wantErr: "MaxThreads",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
