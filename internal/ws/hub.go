package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"log/slog"

	"github.com/PrashantKumarD/audiosync/internal/room"
	"github.com/PrashantKumarD/audiosync/internal/store"
	"github.com/PrashantKumarD/audiosync/pkg/metrics"
)

// Hub binds connections to rooms and routes inbound events through their
// handlers: validate payload, mutate the store, broadcast the derived event.
// Handler failures are logged and dropped; they never tear down the
// connection, the room group, or the process.
type Hub struct {
	log   *slog.Logger
	bus   *RedisBus // nil when running single-instance
	store store.RoomStore

	instanceID string
	now        func() time.Time

	mu     sync.RWMutex
	groups map[string]*Group // local broadcast groups by roomId
}

// NewHub sets up the hub with store + optional redis bus + logger
func NewHub(logger *slog.Logger, bus *RedisBus, st store.RoomStore) *Hub {
	return &Hub{
		log:        logger,
		bus:        bus,
		store:      st,
		instanceID: uuid.NewString(),
		now:        time.Now,
		groups:     map[string]*Group{},
	}
}

// Run forwards bus messages from other instances to local groups
func (h *Hub) Run(ctx context.Context) {
	if h.bus != nil {
		go h.bus.Subscribe(ctx, func(msg BusMessage) {
			if msg.Origin == h.instanceID {
				return // our own publish already went to local clients
			}
			h.mu.RLock()
			g := h.groups[msg.RoomID]
			h.mu.RUnlock()
			if g != nil {
				g.Broadcast(msg.Payload)
			}
		})
	}
	<-ctx.Done()
}

// group returns the broadcast group for a room, creating it if needed
func (h *Hub) group(roomID string) *Group {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := h.groups[roomID]
	if g == nil {
		g = NewGroup()
		h.groups[roomID] = g
		metrics.ActiveRooms.Inc()
	}
	return g
}

// dropGroupIfEmpty removes the local group once its last connection left
func (h *Hub) dropGroupIfEmpty(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if g := h.groups[roomID]; g != nil && g.Size() == 0 {
		delete(h.groups, roomID)
		metrics.ActiveRooms.Dec()
	}
}

// broadcast fans a frame out to the room, locally and across instances
func (h *Hub) broadcast(ctx context.Context, roomID string, frame []byte) {
	if h.bus != nil {
		if err := h.bus.Publish(ctx, BusMessage{Origin: h.instanceID, RoomID: roomID, Payload: frame}); err != nil {
			h.log.Warn("bus.publish", "roomId", roomID, "err", err)
		}
	}
	h.mu.RLock()
	g := h.groups[roomID]
	h.mu.RUnlock()
	if g != nil {
		g.Broadcast(frame)
	}
	metrics.BroadcastsTotal.Inc()
}

// ServeWS handles a new /ws connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	ctx := r.Context()
	c := newClient(uuid.NewString(), conn)
	metrics.ActiveConnections.Inc()
	h.log.Debug("ws.connected", "connId", c.id)

	go c.WriteLoop(ctx)

	for {
		frame, ok := c.Read(ctx)
		if !ok {
			break
		}
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
			c.send(envelope(EvtError, errorOut{Message: "bad request: malformed event"}))
			continue
		}
		h.dispatch(ctx, c, env)
	}

	h.disconnect(context.WithoutCancel(ctx), c)
	metrics.ActiveConnections.Dec()
	_ = c.Close()
	h.log.Debug("ws.disconnected", "connId", c.id)
}

// dispatch routes one inbound event to its handler and applies the shared
// failure policy: bad payloads answer the sender only, a missing room is a
// silent no-op, anything else is logged and dropped without a broadcast.
func (h *Hub) dispatch(ctx context.Context, c *client, env Envelope) {
	metrics.EventsTotal.WithLabelValues(env.Type).Inc()

	var err error
	switch env.Type {
	case EvtJoinRoom:
		err = decodeAnd(env.Data, func(p joinRoomPayload) error { return h.handleJoin(ctx, c, p) })
	case EvtSendMessage:
		err = decodeAnd(env.Data, func(p sendMessagePayload) error { return h.handleSendMessage(ctx, p) })
	case EvtSendAudio:
		err = decodeAnd(env.Data, func(p sendAudioPayload) error { return h.handleSendAudio(ctx, p) })
	case EvtRequestToPlay:
		err = decodeAnd(env.Data, func(p roomPayload) error { return h.handlePlay(ctx, p) })
	case EvtRequestToPause:
		err = decodeAnd(env.Data, func(p roomPayload) error { return h.handlePause(ctx, p) })
	case EvtSendSeek:
		err = decodeAnd(env.Data, func(p seekPayload) error { return h.handleSeek(ctx, p) })
	default:
		err = errBadPayload
	}

	switch {
	case err == nil:
	case errors.Is(err, errBadPayload):
		metrics.EventErrorsTotal.WithLabelValues(env.Type).Inc()
		c.send(envelope(EvtError, errorOut{Message: "bad request: " + err.Error()}))
	case errors.Is(err, store.ErrRoomNotFound):
		// Raced with room deletion; the original would have matched nothing
		h.log.Debug("event.room_missing", "type", env.Type)
	default:
		metrics.EventErrorsTotal.WithLabelValues(env.Type).Inc()
		h.log.Warn("event.failed", "type", env.Type, "err", err)
	}
}

type validator interface{ validate() error }

// decodeAnd unmarshals + validates a payload before running the handler
func decodeAnd[P validator](data json.RawMessage, fn func(P) error) error {
	var p P
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return errBadPayload
		}
	}
	if err := p.validate(); err != nil {
		return err
	}
	return fn(p)
}

func (h *Hub) handleJoin(ctx context.Context, c *client, p joinRoomPayload) error {
	if c.roomID != "" {
		return errBadPayload // one room per connection
	}
	if err := h.store.UpsertRoom(ctx, p.RoomID); err != nil {
		return err
	}
	rm, err := h.store.AddParticipant(ctx, p.RoomID, c.id, p.Username)
	if err != nil {
		return err
	}

	c.roomID = p.RoomID
	c.username = p.Username
	h.group(p.RoomID).Join(c)

	// Full state to the joiner only, participant list to the whole room
	c.send(envelope(EvtSyncRoomState, rm))
	h.broadcast(ctx, p.RoomID, envelope(EvtUpdateParticipants, rm.Participants))
	h.log.Info("room.joined", "roomId", p.RoomID, "username", p.Username, "connId", c.id)
	return nil
}

func (h *Hub) handleSendMessage(ctx context.Context, p sendMessagePayload) error {
	msg := room.ChatMessage{Username: p.Username, Text: p.Text, Timestamp: h.now()}
	if err := h.store.AppendChatMessage(ctx, p.RoomID, msg); err != nil {
		return err
	}
	h.broadcast(ctx, p.RoomID, envelope(EvtReceiveMessage, msg))
	return nil
}

func (h *Hub) handleSendAudio(ctx context.Context, p sendAudioPayload) error {
	if err := h.store.SetTrack(ctx, p.RoomID, p.AudioURL, h.now()); err != nil {
		return err
	}
	h.broadcast(ctx, p.RoomID, envelope(EvtReceiveAudio, audioOut{AudioURL: p.AudioURL}))
	return nil
}

// handlePlay re-anchors the snapshot at the extrapolated current position so
// repeated play/pause cycles never accumulate drift.
func (h *Hub) handlePlay(ctx context.Context, p roomPayload) error {
	rm, err := h.store.GetRoom(ctx, p.RoomID)
	if err != nil {
		return err
	}
	now := h.now()
	pos := rm.Position(now)
	if err := h.store.SetPlaybackState(ctx, p.RoomID, true, pos, now); err != nil {
		return err
	}
	h.broadcast(ctx, p.RoomID, envelope(EvtReceivePlay, playOut{Position: pos}))
	return nil
}

func (h *Hub) handlePause(ctx context.Context, p roomPayload) error {
	rm, err := h.store.GetRoom(ctx, p.RoomID)
	if err != nil {
		return err
	}
	now := h.now()
	pos := rm.Position(now)
	if err := h.store.SetPlaybackState(ctx, p.RoomID, false, pos, now); err != nil {
		return err
	}
	h.broadcast(ctx, p.RoomID, envelope(EvtReceivePause, nil))
	return nil
}

func (h *Hub) handleSeek(ctx context.Context, p seekPayload) error {
	if err := h.store.SetPosition(ctx, p.RoomID, p.Time, h.now()); err != nil {
		return err
	}
	h.broadcast(ctx, p.RoomID, envelope(EvtReceiveSeek, seekOut{Time: p.Time}))
	return nil
}

// disconnect removes the participant, tells the room, and deletes the room
// if this was the last member (conditional delete, safe against a racing
// join).
func (h *Hub) disconnect(ctx context.Context, c *client) {
	if c.roomID == "" {
		return
	}
	h.mu.RLock()
	g := h.groups[c.roomID]
	h.mu.RUnlock()
	if g != nil {
		g.Leave(c)
	}
	h.dropGroupIfEmpty(c.roomID)

	rm, found, err := h.store.RemoveParticipantByConn(ctx, c.id)
	if err != nil {
		h.log.Warn("disconnect.remove", "connId", c.id, "err", err)
		return
	}
	if !found {
		return
	}
	if len(rm.Participants) == 0 {
		if _, err := h.store.DeleteRoomIfEmpty(ctx, rm.RoomID); err != nil {
			h.log.Warn("disconnect.cleanup", "roomId", rm.RoomID, "err", err)
		}
		return
	}
	h.broadcast(ctx, rm.RoomID, envelope(EvtUpdateParticipants, rm.Participants))
}
