package store

import (
	"context"
	"sync"
	"time"

	"github.com/PrashantKumarD/audiosync/internal/room"
)

// Memory keeps all rooms in a mutex-guarded map. It is the default driver and
// the backend used by tests; one lock serializes every mutation, which gives
// the same no-lost-update guarantees the durable backends get from their
// atomic operators.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]*room.Room
}

func NewMemory() *Memory {
	return &Memory{rooms: map[string]*room.Room{}}
}

func (m *Memory) Close() {}

func (m *Memory) UpsertRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		m.rooms[roomID] = &room.Room{
			RoomID:                 roomID,
			LastKnownTimeUpdatedAt: time.Now(),
		}
	}
	return nil
}

func (m *Memory) AddParticipant(_ context.Context, roomID, connectionID, username string) (room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[roomID]
	if !ok {
		return room.Room{}, ErrRoomNotFound
	}
	// Purge the stale entry for this username before inserting
	kept := rm.Participants[:0]
	for _, p := range rm.Participants {
		if p.Username != username {
			kept = append(kept, p)
		}
	}
	rm.Participants = append(kept, room.Participant{ConnectionID: connectionID, Username: username})
	return clone(rm), nil
}

func (m *Memory) RemoveParticipantByConn(_ context.Context, connectionID string) (room.Room, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rm := range m.rooms {
		for i, p := range rm.Participants {
			if p.ConnectionID == connectionID {
				rm.Participants = append(rm.Participants[:i], rm.Participants[i+1:]...)
				return clone(rm), true, nil
			}
		}
	}
	return room.Room{}, false, nil
}

func (m *Memory) DeleteRoomIfEmpty(_ context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[roomID]
	if !ok || len(rm.Participants) > 0 {
		return false, nil
	}
	delete(m.rooms, roomID)
	return true, nil
}

func (m *Memory) AppendChatMessage(_ context.Context, roomID string, msg room.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	rm.ChatHistory = append(rm.ChatHistory, msg)
	return nil
}

func (m *Memory) SetTrack(_ context.Context, roomID, audioURL string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	rm.CurrentAudioURL = audioURL
	rm.IsPlaying = false
	rm.LastKnownTime = 0
	rm.LastKnownTimeUpdatedAt = at
	return nil
}

func (m *Memory) SetPlaybackState(_ context.Context, roomID string, playing bool, position float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	rm.IsPlaying = playing
	rm.LastKnownTime = position
	rm.LastKnownTimeUpdatedAt = at
	return nil
}

func (m *Memory) SetPosition(_ context.Context, roomID string, position float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	rm.LastKnownTime = position
	rm.LastKnownTimeUpdatedAt = at
	return nil
}

func (m *Memory) GetRoom(_ context.Context, roomID string) (room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[roomID]
	if !ok {
		return room.Room{}, ErrRoomNotFound
	}
	return clone(rm), nil
}

// clone copies the room so callers never alias the stored slices
func clone(rm *room.Room) room.Room {
	out := *rm
	out.Participants = append([]room.Participant(nil), rm.Participants...)
	out.ChatHistory = append([]room.ChatMessage(nil), rm.ChatHistory...)
	return out
}
