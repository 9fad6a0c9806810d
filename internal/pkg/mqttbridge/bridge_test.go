package mqttbridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api/mocks"
	"github.com/jake-scott/control4-bridge/internal/pkg/c4auth"
	"github.com/jake-scott/control4-bridge/internal/pkg/coordinator"
	"github.com/jake-scott/control4-bridge/internal/pkg/director"
	"github.com/jake-scott/control4-bridge/internal/pkg/media"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	handlers map[string]MessageHandler

	// when set, Publish waits on block and then returns fail
	block chan struct{}
	fail  error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{handlers: map[string]MessageHandler{}}
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	f.messages = append(f.messages, published{topic: topic, retained: retained, payload: payload})
	return nil
}

func (f *fakePublisher) Subscribe(topic string, qos byte, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[topic] = handler
	return nil
}

func (f *fakePublisher) Close() {}

func (f *fakePublisher) on(topic string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []published
	for _, m := range f.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakePublisher) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakePublisher) deliver(topic string, payload string) {
	f.mu.Lock()
	h := f.handlers["c4/+/set"]
	f.mu.Unlock()

	h(topic, []byte(payload))
}

type testEnv struct {
	pub    *fakePublisher
	bridge *Bridge
	coord  *coordinator.Coordinator
	volume float64
	mu     sync.Mutex
}

func newTestEnv(t *testing.T, d *mocks.MockDirector) *testEnv {
	t.Helper()

	env := &testEnv{pub: newFakePublisher(), volume: 40}

	helper := director.NewHelper(c4auth.NewSession(c4auth.Config{}, c4auth.Credentials{DirectorToken: "dir"}), d)
	env.coord = coordinator.New(media.PlatformRoom, time.Hour, func(ctx context.Context) (map[int]director.Variables, error) {
		env.mu.Lock()
		defer env.mu.Unlock()
		return map[int]director.Variables{
			12: {media.VarPowerState: true, media.VarCurrentVolume: env.volume},
		}, nil
	})
	require.NoError(t, env.coord.Refresh(context.Background()))

	reg := media.NewRegistry()
	reg.Add(&media.Platform{
		Name:        media.PlatformRoom,
		Coordinator: env.coord,
		Players:     []media.Player{media.NewRoom(12, "Kitchen", false, env.coord, helper, nil, nil)},
	})

	env.bridge = New(env.pub, reg, Config{Prefix: "c4", CommandTimeout: time.Second})
	return env
}

// run starts the bridge loops until the test ends
func (env *testEnv) run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		env.bridge.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func TestStartPublishesConfigAndState(t *testing.T) {
	env := newTestEnv(t, &mocks.MockDirector{})
	require.NoError(t, env.bridge.Start(context.Background()))
	env.run(t)

	require.Eventually(t, func() bool {
		return len(env.pub.on("c4/12/config")) == 1 && len(env.pub.on("c4/12/state")) == 1
	}, time.Second*5, time.Millisecond*10)

	configs := env.pub.on("c4/12/config")
	assert.True(t, configs[0].retained)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(configs[0].payload, &cfg))
	assert.Equal(t, "c4/12/state", cfg["state_topic"])
	assert.Equal(t, "c4/12/set", cfg["command_topic"])
	assert.Equal(t, "c4/status", cfg["availability_topic"])

	states := env.pub.on("c4/12/state")
	assert.True(t, states[0].retained)

	var snap media.Snapshot
	require.NoError(t, json.Unmarshal(states[0].payload, &snap))
	assert.Equal(t, media.StateOn, snap.State)
	require.NotNil(t, snap.VolumeLevel)
	assert.Equal(t, 0.4, *snap.VolumeLevel)
}

func TestStatePublishedOnlyOnChange(t *testing.T) {
	env := newTestEnv(t, &mocks.MockDirector{})
	require.NoError(t, env.bridge.Start(context.Background()))
	env.bridge.publishAll()
	assert.Len(t, env.pub.on("c4/12/state"), 1)

	require.NoError(t, env.coord.Refresh(context.Background()))
	assert.Len(t, env.bridge.dirty, 1, "refresh should queue a publish pass")

	env.bridge.publishAll()
	assert.Len(t, env.pub.on("c4/12/state"), 1)

	env.mu.Lock()
	env.volume = 55
	env.mu.Unlock()

	require.NoError(t, env.coord.Refresh(context.Background()))
	env.bridge.publishAll()
	states := env.pub.on("c4/12/state")
	require.Len(t, states, 2)

	var snap media.Snapshot
	require.NoError(t, json.Unmarshal(states[1].payload, &snap))
	assert.Equal(t, 0.55, *snap.VolumeLevel)

	// config goes out once
	assert.Len(t, env.pub.on("c4/12/config"), 1)
}

func TestStalledBrokerDoesNotBlockStartOrPolling(t *testing.T) {
	env := newTestEnv(t, &mocks.MockDirector{})
	env.pub.block = make(chan struct{})
	defer close(env.pub.block)

	done := make(chan struct{})
	go func() {
		defer close(done)

		assert.NoError(t, env.bridge.Start(context.Background()))
		env.run(t)

		for i := 0; i < 3; i++ {
			assert.NoError(t, env.coord.Refresh(context.Background()))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("start or refresh waited on the broker")
	}

	assert.Empty(t, env.pub.on("c4/12/state"))
}

func TestFailedPublishRetriedOnNextPass(t *testing.T) {
	env := newTestEnv(t, &mocks.MockDirector{})
	env.pub.setFail(ErrNotConnected)

	require.NoError(t, env.bridge.Start(context.Background()))
	env.bridge.publishAll()
	assert.Empty(t, env.pub.on("c4/12/config"))

	env.pub.setFail(nil)
	env.bridge.publishAll()
	assert.Len(t, env.pub.on("c4/12/config"), 1)
	assert.Len(t, env.pub.on("c4/12/state"), 1)
}

func TestResyncRepublishesEverything(t *testing.T) {
	env := newTestEnv(t, &mocks.MockDirector{})
	require.NoError(t, env.bridge.Start(context.Background()))
	env.bridge.publishAll()

	env.bridge.Resync()
	assert.Len(t, env.bridge.dirty, 1)

	env.bridge.publishAll()
	assert.Len(t, env.pub.on("c4/12/config"), 2)
	assert.Len(t, env.pub.on("c4/12/state"), 2)
}

func TestCommandsDispatched(t *testing.T) {
	d := &mocks.MockDirector{}
	done := make(chan struct{})
	d.On("SendCommand", mock.Anything, 12, "SET_VOLUME_LEVEL", map[string]interface{}{"LEVEL": 20}).
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })

	env := newTestEnv(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, env.bridge.Start(ctx))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		env.bridge.Run(ctx)
	}()

	// ignored: unknown entity, bad json, unrelated topic
	env.pub.deliver("c4/99/set", `{"command":"turn_on"}`)
	env.pub.deliver("c4/12/set", `{"command":`)
	env.pub.deliver("other/12/set", `{"command":"turn_on"}`)

	env.pub.deliver("c4/12/set", `{"command":"volume_set","volume":0.2}`)

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("command was not dispatched")
	}

	cancel()
	wg.Wait()

	d.AssertExpectations(t)
}

func TestEntityFromTopic(t *testing.T) {
	b := New(newFakePublisher(), media.NewRegistry(), Config{Prefix: "c4"})

	id, ok := b.entityFromTopic("c4/12/set")
	assert.True(t, ok)
	assert.Equal(t, "12", id)

	for _, topic := range []string{"c4/12/state", "c4//set", "c4/12/set/x", "x/12/set", "c4"} {
		_, ok := b.entityFromTopic(topic)
		assert.False(t, ok, topic)
	}
}
