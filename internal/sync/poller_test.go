package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/source"
	"github.com/nhle/tracker/internal/sync"
	"github.com/nhle/tracker/tests/testutil"
)

type fakeSource struct {
	kind  source.SourceType
	mu    gosync.Mutex
	links []source.DevLink
	err   error
	calls int
}

func (f *fakeSource) Type() source.SourceType {
	if f.kind == "" {
		return source.SourceTypeBitbucket
	}
	return f.kind
}

func (f *fakeSource) ValidateConnection(context.Context) (string, error) { return "sync", nil }

func (f *fakeSource) FetchDevLinks(context.Context) ([]source.DevLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.links, f.err
}

func (f *fakeSource) setLinks(links []source.DevLink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = links
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func devLink(issueKey, globalID, title string) source.DevLink {
	return source.DevLink{
		IssueKey:        issueKey,
		GlobalID:        globalID,
		URL:             "https://bitbucket.example.com/" + globalID,
		Title:           title,
		Summary:         "OPEN, feature into main by alice",
		Relationship:    "mentioned in",
		ApplicationType: "com.atlassian.bitbucket",
		ApplicationName: "Bitbucket",
	}
}

func newPoller(t *testing.T) (*sync.Poller, *issuelink.RemoteService, *testutil.Fixture, model.Issue) {
	t.Helper()
	f := testutil.NewFixture(t)
	issue := f.NewIssue(t, f.HSP, f.Bug, "referenced by pull requests")
	remote := issuelink.NewRemoteService(f.Store, f.Checker(), logger.Nop(),
		model.FeatureConfig{IssueLinking: true, RemoteLinks: true})
	return sync.New(remote, f.Alice, logger.Nop()), remote, f, issue
}

func TestSyncOnceCreatesThenUpdates(t *testing.T) {
	p, remote, f, issue := newPoller(t)
	ctx := context.Background()

	src := &fakeSource{links: []source.DevLink{
		devLink(issue.Key, "bitbucket:HSP/app/pull-requests/7", "PR #7: Fix login"),
	}}

	res, err := p.SyncOnce(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, sync.Result{Created: 1}, res)

	res, err = p.SyncOnce(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, sync.Result{Unchanged: 1}, res)

	src.setLinks([]source.DevLink{
		devLink(issue.Key, "bitbucket:HSP/app/pull-requests/7", "PR #7: Fix login for SSO"),
	})
	res, err = p.SyncOnce(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, sync.Result{Updated: 1}, res)

	links, err := remote.GetRemoteLinks(ctx, f.Bob, issue.Key)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "PR #7: Fix login for SSO", links[0].Title)
	assert.Equal(t, "Bitbucket", links[0].ApplicationName)
}

func TestSyncOnceSkipsUnavailableIssues(t *testing.T) {
	p, _, f, issue := newPoller(t)
	ctx := context.Background()
	other := f.NewIssue(t, f.MKY, f.Bug, "alice cannot edit this")

	src := &fakeSource{links: []source.DevLink{
		devLink("HSP-999", "bitbucket:HSP/app/pull-requests/1", "PR #1"),
		devLink(other.Key, "bitbucket:MKY/app/pull-requests/2", "PR #2"),
		devLink(issue.Key, "bitbucket:HSP/app/pull-requests/3", ""),
		devLink(issue.Key, "bitbucket:HSP/app/pull-requests/4", "PR #4"),
	}}

	res, err := p.SyncOnce(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, sync.Result{Created: 1, Skipped: 3}, res)
}

func TestSyncOnceFetchError(t *testing.T) {
	p, _, _, _ := newPoller(t)

	src := &fakeSource{err: errors.New("connection refused")}
	_, err := p.SyncOnce(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPollerRecordsStatus(t *testing.T) {
	p, _, _, issue := newPoller(t)
	src := &fakeSource{links: []source.DevLink{
		devLink(issue.Key, "bitbucket:HSP/app/pull-requests/7", "PR #7"),
	}}
	p.RegisterSource(src, time.Hour)

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, sync.SyncIdle, statuses[0].State)
	assert.True(t, statuses[0].LastSync.IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.Eventually(t, func() bool {
		s := p.GetStatuses()[0]
		return s.State == sync.SyncIdle && !s.LastSync.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, p.GetStatuses()[0].LastResult.Created)

	p.RefreshAll()
	require.Eventually(t, func() bool { return src.callCount() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestPollerRecordsError(t *testing.T) {
	p, _, _, _ := newPoller(t)
	src := &fakeSource{err: &source.AuthError{SourceType: source.SourceTypeBitbucket, Message: "token expired"}}
	p.RegisterSource(src, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.Eventually(t, func() bool {
		return p.GetStatuses()[0].State == sync.SyncError
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, source.IsAuthError(p.GetStatuses()[0].Error))
}

func TestRefreshSourceTargetsOneSource(t *testing.T) {
	p, _, _, _ := newPoller(t)
	bb := &fakeSource{}
	other := &fakeSource{kind: source.SourceTypeJira}
	p.RegisterSource(bb, time.Hour)
	p.RegisterSource(other, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.Eventually(t, func() bool {
		return bb.callCount() == 1 && other.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		require.True(t, p.RefreshSource(source.SourceTypeJira))
		require.Eventually(t, func() bool { return other.callCount() == 2+i }, 2*time.Second, 10*time.Millisecond)
	}
	assert.Equal(t, 1, bb.callCount())
	assert.False(t, p.RefreshSource("gitlab"))
}

func TestPollerRestartsAfterStop(t *testing.T) {
	p, _, _, _ := newPoller(t)
	src := &fakeSource{}
	p.RegisterSource(src, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	require.Eventually(t, func() bool { return src.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	p.Stop()

	p.Start(ctx)
	defer p.Stop()
	require.Eventually(t, func() bool { return src.callCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	p.RefreshAll()
	require.Eventually(t, func() bool { return src.callCount() == 3 }, 2*time.Second, 10*time.Millisecond)
}
