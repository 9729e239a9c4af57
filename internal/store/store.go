package store

import (
	"context"
	"errors"
	"time"

	"github.com/PrashantKumarD/audiosync/internal/room"
)

// ErrRoomNotFound marks mutations that matched no room. Callers treat it as a
// no-op (the room was deleted out from under the event), not a failure.
var ErrRoomNotFound = errors.New("room not found")

// RoomStore is the set of atomic primitives every backend must provide.
// Mutations against the same room serialize inside the backend; participant
// and chat updates are insert/append primitives so concurrent callers never
// lose each other's writes.
type RoomStore interface {
	// UpsertRoom creates the room if absent, otherwise leaves it untouched.
	UpsertRoom(ctx context.Context, roomID string) error

	// AddParticipant first purges any participant with the same username in
	// that room (a reconnect replaces the prior session for that name), then
	// inserts the new entry and returns the updated room.
	AddParticipant(ctx context.Context, roomID, connectionID, username string) (room.Room, error)

	// RemoveParticipantByConn pulls the participant with this connection id
	// out of whichever room holds it. Returns the updated room and false if
	// the connection was not in any room.
	RemoveParticipantByConn(ctx context.Context, connectionID string) (room.Room, bool, error)

	// DeleteRoomIfEmpty deletes the room only if it has no participants, as a
	// single conditional primitive. Returns whether a delete happened.
	DeleteRoomIfEmpty(ctx context.Context, roomID string) (bool, error)

	AppendChatMessage(ctx context.Context, roomID string, msg room.ChatMessage) error

	// SetTrack swaps the shared track and resets transport state
	// (paused, position zero, anchor re-stamped at).
	SetTrack(ctx context.Context, roomID, audioURL string, at time.Time) error

	// SetPlaybackState re-anchors the playback snapshot in one write.
	SetPlaybackState(ctx context.Context, roomID string, playing bool, position float64, at time.Time) error

	// SetPosition re-anchors only the position fields, leaving the playing
	// flag untouched (seek semantics).
	SetPosition(ctx context.Context, roomID string, position float64, at time.Time) error

	GetRoom(ctx context.Context, roomID string) (room.Room, error)

	Close()
}
