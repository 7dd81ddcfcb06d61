package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomrelay/internal/activity"
)

type sent struct {
	To    string
	Event Event
}

type recordingSender struct {
	mu     sync.Mutex
	events []sent
}

func (s *recordingSender) Send(connID string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sent{To: connID, Event: ev})
}

// take returns and clears everything recorded so far.
func (s *recordingSender) take() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func (s *recordingSender) to(connID string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.To == connID {
			out = append(out, e.Event)
		}
	}
	return out
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	mu       sync.Mutex
	events   map[string]int
	signals  map[string]int
	lastConn int
	lastRoom int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{events: map[string]int{}, signals: map[string]int{}}
}

func (o *countingObserver) ObserveEvent(event, rejection string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events[event+"/"+rejection]++
}

func (o *countingObserver) ObserveSignal(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signals[kind]++
}

func (o *countingObserver) ObserveState(conns, rooms int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastConn, o.lastRoom = conns, rooms
}

func newTestRelay(t *testing.T, opts ...Option) (*Relay, *recordingSender, *manualClock) {
	t.Helper()
	sender := &recordingSender{}
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	r := New(sender, append([]Option{WithClock(clock)}, opts...)...)
	return r, sender, clock
}

func connectAll(r *Relay, ids ...string) {
	for _, id := range ids {
		r.Connect(id)
	}
}

func requireRejected(t *testing.T, err error, errType string) {
	t.Helper()
	var rej *RejectError
	require.True(t, errors.As(err, &rej), "expected *RejectError, got %v", err)
	assert.Equal(t, errType, rej.Type)
}

func lastError(t *testing.T, events []Event) ErrorPayload {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name == EventError {
			return events[i].Payload.(ErrorPayload)
		}
	}
	t.Fatalf("no error event in %v", events)
	return ErrorPayload{}
}

func TestConnectAnnouncesID(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	r.Connect("a")

	got := sender.take()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].To)
	assert.Equal(t, Event{Name: EventConnected, Payload: ConnectedPayload{SocketID: "a"}}, got[0].Event)
	assert.Equal(t, Stats{Connections: 1}, r.Stats())
}

func TestJoinSendsPeersListAndPeerJoined(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b", "c")
	sender.take()

	require.NoError(t, r.Join("a", "room1"))
	assert.Equal(t, []sent{{To: "a", Event: Event{Name: EventPeersList, Payload: PeersListPayload{Peers: []string{}}}}}, sender.take())

	require.NoError(t, r.Join("b", "room1"))
	require.NoError(t, r.Join("c", "room1"))
	got := sender.take()

	assert.Equal(t, []sent{
		{To: "b", Event: Event{Name: EventPeersList, Payload: PeersListPayload{Peers: []string{"a"}}}},
		{To: "a", Event: Event{Name: EventPeerJoined, Payload: PeerPayload{SocketID: "b"}}},
		{To: "c", Event: Event{Name: EventPeersList, Payload: PeersListPayload{Peers: []string{"a", "b"}}}},
		{To: "a", Event: Event{Name: EventPeerJoined, Payload: PeerPayload{SocketID: "c"}}},
		{To: "b", Event: Event{Name: EventPeerJoined, Payload: PeerPayload{SocketID: "c"}}},
	}, got)
	assert.Equal(t, []string{"a", "b", "c"}, r.Members("room1"))
}

func TestJoinEmptyRoomListIsEncodedAsArray(t *testing.T) {
	raw, err := json.Marshal(PeersListPayload{Peers: []string{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"peers":[]}`, string(raw))
}

func TestJoinRejectsInvalidRoomID(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a")
	sender.take()

	for _, id := range []string{"", "ab", strings.Repeat("x", 33), "bad room", "room!"} {
		err := r.Join("a", id)
		requireRejected(t, err, ErrTypeRoom)
	}
	got := sender.to("a")
	require.Len(t, got, 5)
	for _, ev := range got {
		assert.Equal(t, EventError, ev.Name)
		assert.Equal(t, ErrTypeRoom, ev.Payload.(ErrorPayload).Type)
	}
	assert.Empty(t, r.RoomOf("a"))
	assert.Equal(t, 0, r.Stats().Rooms)
}

func TestJoinAnotherRoomLeavesPrevious(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b", "c")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	require.NoError(t, r.Join("c", "room2"))
	sender.take()

	require.NoError(t, r.Join("a", "room2"))

	assert.Equal(t, []Event{{Name: EventPeerLeft, Payload: PeerPayload{SocketID: "a"}}}, sender.to("b"))
	assert.Equal(t, []Event{{Name: EventPeerJoined, Payload: PeerPayload{SocketID: "a"}}}, sender.to("c"))
	assert.Equal(t, []Event{{Name: EventPeersList, Payload: PeersListPayload{Peers: []string{"c"}}}}, sender.to("a"))
	assert.Equal(t, []string{"b"}, r.Members("room1"))
	assert.Equal(t, []string{"c", "a"}, r.Members("room2"))
}

func TestRejoinSameRoomMovesToEnd(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	sender.take()

	require.NoError(t, r.Join("a", "room1"))

	assert.Equal(t, []Event{
		{Name: EventPeerLeft, Payload: PeerPayload{SocketID: "a"}},
		{Name: EventPeerJoined, Payload: PeerPayload{SocketID: "a"}},
	}, sender.to("b"))
	assert.Equal(t, []string{"b", "a"}, r.Members("room1"))
}

func TestJoinRateLimit(t *testing.T) {
	r, sender, clock := newTestRelay(t, WithLimits(activity.Config{MaxJoinsPerHour: 3}))
	connectAll(r, "a")

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Join("a", fmt.Sprintf("room%d", i)))
	}
	sender.take()

	err := r.Join("a", "room9")
	requireRejected(t, err, ErrTypeRoom)
	assert.ErrorIs(t, err, activity.ErrJoinLimit)
	assert.Equal(t, "room2", r.RoomOf("a"), "rejected join must not leave the current room")
	assert.Equal(t, ErrTypeRoom, lastError(t, sender.to("a")).Type)

	clock.Advance(time.Hour + time.Second)
	require.NoError(t, r.Join("a", "room9"))
	assert.Equal(t, "room9", r.RoomOf("a"))
}

func TestInvalidJoinDoesNotConsumeQuota(t *testing.T) {
	r, _, _ := newTestRelay(t, WithLimits(activity.Config{MaxJoinsPerHour: 1}))
	connectAll(r, "a")

	requireRejected(t, r.Join("a", "x"), ErrTypeRoom)
	require.NoError(t, r.Join("a", "room1"))
}

func TestLeave(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	require.NoError(t, r.SetName("a", "alice"))
	sender.take()

	r.Leave("a", "other")
	assert.Empty(t, sender.take(), "leaving a room not occupied is a no-op")
	assert.Equal(t, "room1", r.RoomOf("a"))

	r.Leave("a", "room1")
	assert.Equal(t, []sent{{To: "b", Event: Event{Name: EventPeerLeft, Payload: PeerPayload{SocketID: "a"}}}}, sender.take())
	assert.Empty(t, r.RoomOf("a"))
	assert.Equal(t, []string{"b"}, r.Members("room1"))

	r.Leave("b", "room1")
	assert.Empty(t, sender.take())
	assert.Equal(t, 0, r.Stats().Rooms)
	assert.Equal(t, 2, r.Stats().Connections)
}

func TestLeaveClearsDisplayName(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.SetName("a", "alice"))
	r.Leave("a", "room1")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	sender.take()

	require.NoError(t, r.Chat("a", ChatRequest{Text: "hello", Timestamp: 1}))
	assert.Equal(t, []Event{{Name: EventChatMessage, Payload: ChatPayload{Author: GuestName, Text: "hello", Timestamp: 1}}}, sender.to("b"))
}

func TestDisconnectPurgesEverything(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b", "c")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	require.NoError(t, r.Join("c", "room1"))
	sender.take()

	r.Disconnect("a")
	got := sender.take()
	assert.Equal(t, []sent{
		{To: "b", Event: Event{Name: EventPeerLeft, Payload: PeerPayload{SocketID: "a"}}},
		{To: "c", Event: Event{Name: EventPeerLeft, Payload: PeerPayload{SocketID: "a"}}},
	}, got)
	assert.Equal(t, []string{"b", "c"}, r.Members("room1"))
	assert.False(t, r.tracker.Has("a"))
	assert.Equal(t, 2, r.Stats().Connections)

	r.Disconnect("a")
	assert.Empty(t, sender.take())

	assert.ErrorIs(t, r.Join("a", "room1"), ErrUnknownConnection)
	assert.ErrorIs(t, r.Signal("a", SignalRequest{To: "b", Data: json.RawMessage(`{"type":"offer"}`)}), ErrUnknownConnection)
	assert.Empty(t, sender.take())
}

func TestDisconnectLastMemberDeletesRoom(t *testing.T) {
	r, _, _ := newTestRelay(t)
	connectAll(r, "a")
	require.NoError(t, r.Join("a", "solo"))
	require.Equal(t, 1, r.Stats().Rooms)

	r.Disconnect("a")
	assert.Equal(t, Stats{}, r.Stats())
	assert.Empty(t, r.Members("solo"))
}

func TestSignalForwardsWithinRoom(t *testing.T) {
	obs := newCountingObserver()
	r, sender, _ := newTestRelay(t, WithObserver(obs))
	connectAll(r, "a", "b")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	sender.take()

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)
	require.NoError(t, r.Signal("a", SignalRequest{To: "b", Data: offer}))

	got := sender.take()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].To)
	assert.Equal(t, Event{Name: EventSignal, Payload: SignalPayload{From: "a", Data: offer}}, got[0].Event)
	assert.Equal(t, 1, obs.signals["offer"])
	assert.Equal(t, 1, obs.events[EventSignal+"/"])
}

func TestSignalRejections(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b", "c", "lobby")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	require.NoError(t, r.Join("c", "room2"))
	sender.take()

	data := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host"}`)
	cases := map[string]SignalRequest{
		"other room":     {To: "c", Data: data},
		"unknown target": {To: "ghost", Data: data},
		"lobby target":   {To: "lobby", Data: data},
		"missing target": {Data: data},
		"null payload":   {To: "b", Data: json.RawMessage(`null`)},
		"empty object":   {To: "b", Data: json.RawMessage(`{}`)},
		"no payload":     {To: "b"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			requireRejected(t, r.Signal("a", req), ErrTypeSignal)
		})
	}

	for _, e := range sender.take() {
		assert.Equal(t, "a", e.To, "nothing may be forwarded on a rejected signal")
		assert.Equal(t, EventError, e.Event.Name)
	}

	requireRejected(t, r.Signal("lobby", SignalRequest{To: "a", Data: data}), ErrTypeSignal)
}

func TestSetNameBroadcastsToRoom(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b", "c")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	require.NoError(t, r.Join("c", "room2"))
	sender.take()

	require.NoError(t, r.SetName("a", "  alice  "))
	want := Event{Name: EventUserNameSet, Payload: UserNamePayload{SocketID: "a", UserName: "alice"}}
	assert.ElementsMatch(t, []sent{{To: "a", Event: want}, {To: "b", Event: want}}, sender.take())

	err := r.SetName("b", "alice")
	requireRejected(t, err, ErrTypeUserName)
	assert.Equal(t, ErrTypeUserName, lastError(t, sender.to("b")).Type)

	require.NoError(t, r.SetName("c", "alice"), "names are unique per room only")
	require.NoError(t, r.SetName("a", "alice"), "re-setting your own name is allowed")
}

func TestSetNameValidation(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a")
	require.NoError(t, r.Join("a", "room1"))
	sender.take()

	for _, name := range []string{"", " a ", strings.Repeat("n", 21), "<b>x</b>", `bob"`} {
		requireRejected(t, r.SetName("a", name), ErrTypeUserName)
	}
	for _, ev := range sender.take() {
		assert.Equal(t, EventError, ev.Event.Name)
	}
}

func TestSetNameOutsideRoomAcksSetterOnly(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b")
	sender.take()

	require.NoError(t, r.SetName("a", "alice"))
	assert.Equal(t, []sent{{To: "a", Event: Event{Name: EventUserNameSet, Payload: UserNamePayload{SocketID: "a", UserName: "alice"}}}}, sender.take())
}

func TestJoinDropsNameHeldInRoom(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b", "c")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.SetName("a", "Alice"))
	require.NoError(t, r.SetName("b", "Alice"))
	require.NoError(t, r.SetName("c", "Carol"))

	require.NoError(t, r.Join("b", "room1"))
	require.NoError(t, r.Join("c", "room1"))
	sender.take()

	require.NoError(t, r.Chat("b", ChatRequest{Text: "hello", Timestamp: 1}))
	require.NoError(t, r.Chat("c", ChatRequest{Text: "hey", Timestamp: 2}))
	assert.Equal(t, []Event{
		{Name: EventChatMessage, Payload: ChatPayload{Author: GuestName, Text: "hello", Timestamp: 1}},
		{Name: EventChatMessage, Payload: ChatPayload{Author: "Carol", Text: "hey", Timestamp: 2}},
	}, sender.to("a"))

	require.NoError(t, r.SetName("b", "Bob"))
	requireRejected(t, r.SetName("c", "Alice"), ErrTypeUserName)
}

func TestChatBroadcast(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b", "c", "d")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	require.NoError(t, r.Join("c", "room1"))
	require.NoError(t, r.Join("d", "room2"))
	require.NoError(t, r.SetName("a", "alice"))
	sender.take()

	require.NoError(t, r.Chat("a", ChatRequest{Text: "hi there", Timestamp: 1234}))
	want := Event{Name: EventChatMessage, Payload: ChatPayload{Author: "alice", Text: "hi there", Timestamp: 1234}}
	assert.Equal(t, []sent{{To: "b", Event: want}, {To: "c", Event: want}}, sender.take())
}

func TestChatFillsMissingTimestamp(t *testing.T) {
	r, sender, clock := newTestRelay(t)
	connectAll(r, "a", "b")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	sender.take()

	require.NoError(t, r.Chat("b", ChatRequest{Text: "hello"}))
	got := sender.to("a")
	require.Len(t, got, 1)
	payload := got[0].Payload.(ChatPayload)
	assert.Equal(t, GuestName, payload.Author)
	assert.Equal(t, float64(clock.Now().UnixMilli()), payload.Timestamp)
}

func TestChatOutsideRoomIsDropped(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a")
	sender.take()

	require.NoError(t, r.Chat("a", ChatRequest{Text: "anyone?"}))
	assert.Empty(t, sender.take())
}

func TestChatRejectsInvalidAndSpam(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	connectAll(r, "a", "b")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	sender.take()

	for _, text := range []string{"   ", strings.Repeat("x", 501), "see www.example.com", "aaaaaaaaaaaa", "CALL NOWWWWWWWWWW", "1234567890"} {
		requireRejected(t, r.Chat("a", ChatRequest{Text: text}), ErrTypeChat)
	}
	assert.Empty(t, sender.to("b"))

	// Rejected messages do not count against the rate limit.
	require.NoError(t, r.Chat("a", ChatRequest{Text: "fine"}))
}

func TestChatRateLimits(t *testing.T) {
	r, sender, clock := newTestRelay(t)
	connectAll(r, "a", "b")
	require.NoError(t, r.Join("a", "room1"))
	require.NoError(t, r.Join("b", "room1"))
	sender.take()

	require.NoError(t, r.Chat("a", ChatRequest{Text: "one"}))
	err := r.Chat("a", ChatRequest{Text: "two"})
	requireRejected(t, err, ErrTypeChat)
	assert.ErrorIs(t, err, activity.ErrTooFast)

	for i := 1; i < activity.DefaultMaxMessagesPerMinute; i++ {
		clock.Advance(activity.DefaultMinMessageInterval)
		require.NoError(t, r.Chat("a", ChatRequest{Text: fmt.Sprintf("msg %d", i)}))
	}
	clock.Advance(activity.DefaultMinMessageInterval)
	err = r.Chat("a", ChatRequest{Text: "one too many"})
	assert.ErrorIs(t, err, activity.ErrMessageLimit)
	assert.Len(t, sender.to("b"), activity.DefaultMaxMessagesPerMinute)

	clock.Advance(time.Minute)
	require.NoError(t, r.Chat("a", ChatRequest{Text: "new window"}))
}

func TestDispatch(t *testing.T) {
	obs := newCountingObserver()
	r, sender, _ := newTestRelay(t, WithObserver(obs))
	connectAll(r, "a", "b")
	sender.take()

	require.NoError(t, r.Dispatch("a", EventJoin, json.RawMessage(`"room1"`)))
	require.NoError(t, r.Dispatch("b", EventJoin, json.RawMessage(`"room1"`)))
	require.NoError(t, r.Dispatch("b", EventSetUserName, json.RawMessage(`{"userName":"bob"}`)))
	require.NoError(t, r.Dispatch("b", EventChatMessage, json.RawMessage(`{"text":"yo","timestamp":5}`)))
	require.NoError(t, r.Dispatch("a", EventSignal, json.RawMessage(`{"to":"b","data":{"type":"answer","sdp":"x"}}`)))
	require.NoError(t, r.Dispatch("a", EventLeave, json.RawMessage(`"room1"`)))
	assert.Empty(t, r.RoomOf("a"))

	requireRejected(t, r.Dispatch("a", "bogus", nil), ErrTypeEvent)
	requireRejected(t, r.Dispatch("a", EventJoin, json.RawMessage(`{"room":1}`)), ErrTypeRoom)
	requireRejected(t, r.Dispatch("a", EventSignal, json.RawMessage(`"nope"`)), ErrTypeSignal)
	requireRejected(t, r.Dispatch("a", EventChatMessage, json.RawMessage(`[]`)), ErrTypeChat)
	assert.Equal(t, ErrTypeChat, lastError(t, sender.to("a")).Type)

	assert.Equal(t, 2, obs.events[EventJoin+"/"])
	assert.Equal(t, 1, obs.events[EventUnknown+"/"+ErrTypeEvent])
	assert.Equal(t, 1, obs.signals["answer"])
	assert.Equal(t, 2, obs.lastConn)
	assert.Equal(t, 1, obs.lastRoom)
}

func TestRejectUnknownConnection(t *testing.T) {
	r, sender, _ := newTestRelay(t)
	assert.ErrorIs(t, r.Reject("ghost", "Malformed frame"), ErrUnknownConnection)
	assert.Empty(t, sender.take())

	r.Connect("a")
	sender.take()
	requireRejected(t, r.Reject("a", "Malformed frame"), ErrTypeEvent)
	assert.Equal(t, ErrorPayload{Type: ErrTypeEvent, Message: "Malformed frame"}, lastError(t, sender.to("a")))
}

// TestRandomEventsNeverCrossRooms drives a random mix of operations from many
// goroutines and checks that peer events only ever reach current or former
// roommates and that membership stays consistent.
func TestRandomEventsNeverCrossRooms(t *testing.T) {
	r, sender, clock := newTestRelay(t, WithLimits(activity.Config{MaxJoinsPerHour: 1_000_000, MaxMessagesPerMinute: 1_000_000, MinMessageInterval: time.Nanosecond}))
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	rooms := []string{"red", "green", "blue"}
	connectAll(r, ids...)

	var wg sync.WaitGroup
	for w, id := range ids {
		wg.Add(1)
		go func(seed int64, id string) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 300; i++ {
				clock.Advance(time.Millisecond)
				switch rng.Intn(5) {
				case 0:
					_ = r.Join(id, rooms[rng.Intn(len(rooms))])
				case 1:
					r.Leave(id, rooms[rng.Intn(len(rooms))])
				case 2:
					_ = r.Signal(id, SignalRequest{To: ids[rng.Intn(len(ids))], Data: json.RawMessage(`{"type":"offer"}`)})
				case 3:
					_ = r.Chat(id, ChatRequest{Text: "ping", Timestamp: 1})
				case 4:
					_ = r.SetName(id, fmt.Sprintf("user-%d", rng.Intn(4)))
				}
			}
		}(int64(w), id)
	}
	wg.Wait()

	total := 0
	seen := map[string]bool{}
	for _, roomID := range rooms {
		members := r.Members(roomID)
		for _, id := range members {
			require.False(t, seen[id], "%s listed in two rooms", id)
			seen[id] = true
			assert.Equal(t, roomID, r.RoomOf(id))
		}
		total += len(members)
	}
	for _, id := range ids {
		if !seen[id] {
			assert.Empty(t, r.RoomOf(id))
		}
	}

	for _, e := range sender.take() {
		if e.Event.Name == EventSignal {
			p := e.Event.Payload.(SignalPayload)
			assert.NotEqual(t, "", p.From)
		}
	}

	for _, id := range ids {
		r.Disconnect(id)
	}
	assert.Equal(t, Stats{}, r.Stats())
	assert.Equal(t, 0, r.tracker.Len())
	assert.LessOrEqual(t, total, len(ids))
}
