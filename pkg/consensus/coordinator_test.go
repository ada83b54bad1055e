package consensus

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/fleet-coordinator/pkg/registry"
	"github.com/telekom/fleet-coordinator/pkg/resolver"
	"github.com/telekom/fleet-coordinator/pkg/role"
	"github.com/telekom/fleet-coordinator/pkg/signer"
)

const testSecret = "consensus-test-secret"

type testFixture struct {
	coord    *Coordinator
	registry *registry.Registry
	roles    *role.Store
	store    *resolver.MemoryStore
	server   *httptest.Server

	mu     sync.Mutex
	events []role.Event
}

func setup(t *testing.T, selfID string) *testFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t).Sugar()

	sig, err := signer.New(testSecret)
	require.NoError(t, err)

	// resolver side, hosted in-process the same way fleetd embeds it
	store := resolver.NewMemoryStore()
	resolverCtl := resolver.NewController(log, store, registry.New(), sig)
	engine := gin.New()
	require.NoError(t, resolverCtl.Register(engine.Group("/federation")))
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	fx := &testFixture{
		registry: registry.New(),
		roles:    role.NewStore(selfID, log),
		store:    store,
		server:   server,
	}
	fx.roles.Subscribe(func(ev role.Event, _ role.State) {
		fx.mu.Lock()
		fx.events = append(fx.events, ev)
		fx.mu.Unlock()
	})

	client := resolver.NewClient(server.URL, 2*time.Second, log)
	fx.coord = New(log, client, fx.registry, fx.roles, sig, Options{
		SelfID:         selfID,
		StaleThreshold: 300 * time.Second,
		RequestTimeout: 2 * time.Second,
	})
	return fx
}

func (fx *testFixture) recordedEvents() []role.Event {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return append([]role.Event(nil), fx.events...)
}

func TestSendHeartbeatRegistersSelf(t *testing.T) {
	fx := setup(t, "node-a")

	require.NoError(t, fx.coord.SendHeartbeat(context.Background()))

	peers := fx.registry.ActivePeers(time.Now().UTC(), 300*time.Second)
	require.Len(t, peers, 1)
	assert.Equal(t, "node-a", peers[0].NodeID)
	assert.Positive(t, peers[0].Epoch)
}

func TestRunElectionSkipsWithoutPeers(t *testing.T) {
	fx := setup(t, "node-a")

	require.NoError(t, fx.coord.RunElection(context.Background()))

	rec, err := fx.store.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.Leader, "no report must reach the resolver when no peers are active")
}

func TestElectionThenPollPromotesSelf(t *testing.T) {
	fx := setup(t, "node-a")
	ctx := context.Background()
	now := time.Now().UTC()

	// node-a has the highest epoch in its local view
	fx.registry.RecordSeen("node-a", 3000, now)
	fx.registry.RecordSeen("node-b", 2000, now)

	require.NoError(t, fx.coord.RunElection(ctx))

	rec, err := fx.store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-a", rec.Leader)
	require.NotEmpty(t, rec.Lease)

	require.NoError(t, fx.coord.PollLeader(ctx))

	state := fx.roles.Current()
	assert.True(t, state.IsLeader)
	assert.Equal(t, "node-a", state.LeaderID)
	assert.Equal(t, rec.Lease, state.LeaseToken)
	assert.Equal(t, []role.Event{role.EventPromoted}, fx.recordedEvents())
}

func TestElectionVotesForPeerWithHighestEpoch(t *testing.T) {
	fx := setup(t, "node-a")
	ctx := context.Background()
	now := time.Now().UTC()

	fx.registry.RecordSeen("node-a", 1000, now)
	fx.registry.RecordSeen("node-b", 5000, now)

	require.NoError(t, fx.coord.RunElection(ctx))
	require.NoError(t, fx.coord.PollLeader(ctx))

	state := fx.roles.Current()
	assert.False(t, state.IsLeader)
	assert.Equal(t, "node-b", state.LeaderID)
	assert.Empty(t, fx.recordedEvents(), "watching another node win is not a local transition")
}

func TestPollLeaderDemotesWhenResolverFlips(t *testing.T) {
	fx := setup(t, "node-a")
	ctx := context.Background()

	require.NoError(t, fx.store.Set(ctx, resolver.LeaderRecord{Leader: "node-a", Lease: "l-1", Epoch: 1}))
	require.NoError(t, fx.coord.PollLeader(ctx))
	require.True(t, fx.roles.IsLeader())

	require.NoError(t, fx.store.Set(ctx, resolver.LeaderRecord{Leader: "node-b", Lease: "l-2", Epoch: 2}))
	require.NoError(t, fx.coord.PollLeader(ctx))

	assert.False(t, fx.roles.IsLeader())
	assert.Equal(t, []role.Event{role.EventPromoted, role.EventDemoted}, fx.recordedEvents())
}

func TestPollLeaderKeepsRoleOnEmptyRecord(t *testing.T) {
	fx := setup(t, "node-a")
	ctx := context.Background()

	require.NoError(t, fx.store.Set(ctx, resolver.LeaderRecord{Leader: "node-a", Lease: "l-1", Epoch: 1}))
	require.NoError(t, fx.coord.PollLeader(ctx))
	require.True(t, fx.roles.IsLeader())

	// resolver restarted and lost its record; the node holds its role
	// until a real leader record appears
	require.NoError(t, fx.store.Set(ctx, resolver.LeaderRecord{}))
	require.NoError(t, fx.coord.PollLeader(ctx))
	assert.True(t, fx.roles.IsLeader())
}

func TestResolverOutageIsNonFatal(t *testing.T) {
	fx := setup(t, "node-a")
	fx.server.Close()
	ctx := context.Background()

	fx.registry.RecordSeen("node-a", 1000, time.Now().UTC())

	assert.Error(t, fx.coord.SendHeartbeat(ctx))
	assert.Error(t, fx.coord.RunElection(ctx))
	assert.Error(t, fx.coord.PollLeader(ctx))

	state := fx.roles.Current()
	assert.False(t, state.IsLeader, "an unreachable resolver must never promote this node")
	assert.Empty(t, fx.recordedEvents())
}

func TestRunStopsOnCancel(t *testing.T) {
	fx := setup(t, "node-a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fx.coord.Run(ctx)
		close(done)
	}()

	// allow the immediate first iterations to fire
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop after cancellation")
	}

	peers := fx.registry.ActivePeers(time.Now().UTC(), 300*time.Second)
	require.Len(t, peers, 1, "first heartbeat iteration should have registered the node")
}
