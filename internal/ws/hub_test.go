package ws

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"

	"github.com/PrashantKumarD/audiosync/internal/room"
	"github.com/PrashantKumarD/audiosync/internal/store"
)

func newTestHub(t *testing.T) (*Hub, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, st)
	return h, st
}

func inbound(t *testing.T, typ string, payload any) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Type: typ, Data: data}
}

// recv pops the next queued frame for a client
func recv(t *testing.T, c *client) Envelope {
	t.Helper()
	select {
	case b := <-c.out:
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	default:
		t.Fatal("no frame queued")
		return Envelope{}
	}
}

func noFrame(t *testing.T, c *client) {
	t.Helper()
	select {
	case b := <-c.out:
		t.Fatalf("unexpected frame: %s", b)
	default:
	}
}

func join(t *testing.T, h *Hub, c *client, roomID, username string) {
	t.Helper()
	h.dispatch(context.Background(), c, inbound(t, EvtJoinRoom, joinRoomPayload{RoomID: roomID, Username: username}))
}

func TestJoinRoomCreatesAndSyncs(t *testing.T) {
	h, st := newTestHub(t)
	c := newClient("c1", nil)

	join(t, h, c, "lounge", "alice")

	// Joiner gets full state first, then the participant list broadcast
	env := recv(t, c)
	assert.Equal(t, EvtSyncRoomState, env.Type)
	var rm room.Room
	require.NoError(t, json.Unmarshal(env.Data, &rm))
	assert.Equal(t, "lounge", rm.RoomID)
	require.Len(t, rm.Participants, 1)
	assert.Equal(t, "c1", rm.Participants[0].ConnectionID)

	env = recv(t, c)
	assert.Equal(t, EvtUpdateParticipants, env.Type)

	stored, err := st.GetRoom(context.Background(), "lounge")
	require.NoError(t, err)
	assert.Len(t, stored.Participants, 1)
	assert.Equal(t, "lounge", c.roomID)
}

func TestRejoinSameUsernameReplacesEntry(t *testing.T) {
	h, st := newTestHub(t)
	old := newClient("conn-old", nil)
	join(t, h, old, "lounge", "alice")

	// Same name reconnects on a fresh connection without a clean disconnect
	fresh := newClient("conn-new", nil)
	join(t, h, fresh, "lounge", "alice")

	rm, err := st.GetRoom(context.Background(), "lounge")
	require.NoError(t, err)
	require.Len(t, rm.Participants, 1)
	assert.Equal(t, "conn-new", rm.Participants[0].ConnectionID)
}

func TestSecondJoinOnSameConnectionRejected(t *testing.T) {
	h, st := newTestHub(t)
	c := newClient("c1", nil)
	join(t, h, c, "lounge", "alice")
	drain(c)

	join(t, h, c, "other", "alice")
	env := recv(t, c)
	assert.Equal(t, EvtError, env.Type)

	_, err := st.GetRoom(context.Background(), "other")
	assert.ErrorIs(t, err, store.ErrRoomNotFound)
}

func TestMalformedPayloadAnswersSenderOnly(t *testing.T) {
	h, st := newTestHub(t)
	c := newClient("c1", nil)

	h.dispatch(context.Background(), c, inbound(t, EvtJoinRoom, map[string]string{"roomId": ""}))

	env := recv(t, c)
	assert.Equal(t, EvtError, env.Type)
	_, err := st.GetRoom(context.Background(), "")
	assert.ErrorIs(t, err, store.ErrRoomNotFound)
}

func TestUnknownEventType(t *testing.T) {
	h, _ := newTestHub(t)
	c := newClient("c1", nil)

	h.dispatch(context.Background(), c, Envelope{Type: "mystery"})
	env := recv(t, c)
	assert.Equal(t, EvtError, env.Type)
}

func TestSendMessageBroadcastsToRoom(t *testing.T) {
	h, st := newTestHub(t)
	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return stamp }

	a := newClient("c1", nil)
	b := newClient("c2", nil)
	join(t, h, a, "lounge", "alice")
	join(t, h, b, "lounge", "bob")
	drain(a)
	drain(b)

	h.dispatch(context.Background(), a, inbound(t, EvtSendMessage,
		sendMessagePayload{RoomID: "lounge", Username: "alice", Text: "hi"}))

	for _, c := range []*client{a, b} {
		env := recv(t, c)
		require.Equal(t, EvtReceiveMessage, env.Type)
		var msg room.ChatMessage
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, stamp, msg.Timestamp)
	}

	rm, err := st.GetRoom(context.Background(), "lounge")
	require.NoError(t, err)
	require.Len(t, rm.ChatHistory, 1)
}

func TestSendAudioResetsTransport(t *testing.T) {
	h, st := newTestHub(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	c := newClient("c1", nil)
	join(t, h, c, "lounge", "alice")
	drain(c)

	// Room was playing before the track swap
	require.NoError(t, st.SetPlaybackState(context.Background(), "lounge", true, 55, now.Add(-time.Minute)))

	h.dispatch(context.Background(), c, inbound(t, EvtSendAudio,
		sendAudioPayload{RoomID: "lounge", AudioURL: "https://cdn.example.com/track.mp3"}))

	env := recv(t, c)
	assert.Equal(t, EvtReceiveAudio, env.Type)

	rm, err := st.GetRoom(context.Background(), "lounge")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/track.mp3", rm.CurrentAudioURL)
	assert.False(t, rm.IsPlaying)
	assert.Zero(t, rm.LastKnownTime)
	assert.Equal(t, now, rm.LastKnownTimeUpdatedAt)
}

func TestPlayExtrapolatesFromSnapshot(t *testing.T) {
	h, st := newTestHub(t)
	anchor := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	c := newClient("c1", nil)
	join(t, h, c, "lounge", "alice")
	drain(c)

	// Already playing since the anchor; play again 2.5s later
	require.NoError(t, st.SetPlaybackState(context.Background(), "lounge", true, 10, anchor))
	h.now = func() time.Time { return anchor.Add(2500 * time.Millisecond) }

	h.dispatch(context.Background(), c, inbound(t, EvtRequestToPlay, roomPayload{RoomID: "lounge"}))

	env := recv(t, c)
	require.Equal(t, EvtReceivePlay, env.Type)
	var out playOut
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.InDelta(t, 12.5, out.Position, 1e-9)

	rm, err := st.GetRoom(context.Background(), "lounge")
	require.NoError(t, err)
	assert.True(t, rm.IsPlaying)
	assert.InDelta(t, 12.5, rm.LastKnownTime, 1e-9)
}

func TestPlayThenPauseReanchorsWithoutDrift(t *testing.T) {
	h, st := newTestHub(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	c := newClient("c1", nil)
	join(t, h, c, "lounge", "alice")
	drain(c)
	require.NoError(t, st.SetPosition(context.Background(), "lounge", 10, now))

	// play then pause with no wall time elapsing in between
	h.dispatch(context.Background(), c, inbound(t, EvtRequestToPlay, roomPayload{RoomID: "lounge"}))
	h.dispatch(context.Background(), c, inbound(t, EvtRequestToPause, roomPayload{RoomID: "lounge"}))

	env := recv(t, c)
	assert.Equal(t, EvtReceivePlay, env.Type)
	env = recv(t, c)
	assert.Equal(t, EvtReceivePause, env.Type)

	rm, err := st.GetRoom(context.Background(), "lounge")
	require.NoError(t, err)
	assert.False(t, rm.IsPlaying)
	assert.Equal(t, 10.0, rm.LastKnownTime)
}

func TestSeekPreservesPlayState(t *testing.T) {
	h, st := newTestHub(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	c := newClient("c1", nil)
	join(t, h, c, "lounge", "alice")
	drain(c)
	require.NoError(t, st.SetPlaybackState(context.Background(), "lounge", true, 10, now.Add(-time.Second)))

	h.dispatch(context.Background(), c, inbound(t, EvtSendSeek, seekPayload{RoomID: "lounge", Time: 42}))

	env := recv(t, c)
	require.Equal(t, EvtReceiveSeek, env.Type)
	var out seekOut
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 42.0, out.Time)

	rm, err := st.GetRoom(context.Background(), "lounge")
	require.NoError(t, err)
	assert.True(t, rm.IsPlaying)
	assert.Equal(t, 42.0, rm.LastKnownTime)
	assert.Equal(t, now, rm.LastKnownTimeUpdatedAt)
}

func TestEventForMissingRoomIsSilent(t *testing.T) {
	h, _ := newTestHub(t)
	c := newClient("c1", nil)

	h.dispatch(context.Background(), c, inbound(t, EvtRequestToPlay, roomPayload{RoomID: "ghost"}))
	noFrame(t, c)
}

func TestDisconnectNotifiesRemaining(t *testing.T) {
	h, st := newTestHub(t)
	a := newClient("c1", nil)
	b := newClient("c2", nil)
	join(t, h, a, "lounge", "alice")
	join(t, h, b, "lounge", "bob")
	drain(a)
	drain(b)

	h.disconnect(context.Background(), a)

	env := recv(t, b)
	require.Equal(t, EvtUpdateParticipants, env.Type)
	var parts []room.Participant
	require.NoError(t, json.Unmarshal(env.Data, &parts))
	require.Len(t, parts, 1)
	assert.Equal(t, "bob", parts[0].Username)

	rm, err := st.GetRoom(context.Background(), "lounge")
	require.NoError(t, err)
	assert.Len(t, rm.Participants, 1)
}

func TestLastDisconnectDeletesRoom(t *testing.T) {
	h, st := newTestHub(t)
	c := newClient("c1", nil)
	join(t, h, c, "lounge", "alice")
	drain(c)

	h.disconnect(context.Background(), c)

	_, err := st.GetRoom(context.Background(), "lounge")
	assert.ErrorIs(t, err, store.ErrRoomNotFound)
	h.mu.RLock()
	assert.Empty(t, h.groups)
	h.mu.RUnlock()
}

func TestDisconnectBeforeJoinIsNoop(t *testing.T) {
	h, _ := newTestHub(t)
	c := newClient("c1", nil)
	h.disconnect(context.Background(), c)
	noFrame(t, c)
}

func drain(c *client) {
	for {
		select {
		case <-c.out:
		default:
			return
		}
	}
}
