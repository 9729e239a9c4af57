package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event types
const (
	EvtJoinRoom       = "join_room"
	EvtSendMessage    = "send_message"
	EvtSendAudio      = "send_audio"
	EvtRequestToPlay  = "request_to_play"
	EvtRequestToPause = "request_to_pause"
	EvtSendSeek       = "send_seek"
)

// Outbound event types
const (
	EvtSyncRoomState      = "sync_room_state"
	EvtUpdateParticipants = "update_participants"
	EvtReceiveMessage     = "receive_message"
	EvtReceiveAudio       = "receive_audio"
	EvtReceivePlay        = "receive_play"
	EvtReceivePause       = "receive_pause"
	EvtReceiveSeek        = "receive_seek"
	EvtError              = "error"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// errBadPayload flags malformed inbound frames; dispatch answers the sender
// with an error event and never touches the room.
var errBadPayload = errors.New("bad payload")

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

func (p joinRoomPayload) validate() error {
	if p.RoomID == "" || p.Username == "" {
		return fmt.Errorf("%w: roomId and username required", errBadPayload)
	}
	return nil
}

type sendMessagePayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

func (p sendMessagePayload) validate() error {
	if p.RoomID == "" || p.Username == "" || p.Text == "" {
		return fmt.Errorf("%w: roomId, username and text required", errBadPayload)
	}
	return nil
}

type sendAudioPayload struct {
	RoomID   string `json:"roomId"`
	AudioURL string `json:"audioUrl"`
}

func (p sendAudioPayload) validate() error {
	if p.RoomID == "" || p.AudioURL == "" {
		return fmt.Errorf("%w: roomId and audioUrl required", errBadPayload)
	}
	return nil
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

func (p roomPayload) validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("%w: roomId required", errBadPayload)
	}
	return nil
}

type seekPayload struct {
	RoomID string  `json:"roomId"`
	Time   float64 `json:"time"`
}

func (p seekPayload) validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("%w: roomId required", errBadPayload)
	}
	if p.Time < 0 {
		return fmt.Errorf("%w: time must be >= 0", errBadPayload)
	}
	return nil
}

// Outbound payloads
type audioOut struct {
	AudioURL string `json:"audioUrl"`
}

type playOut struct {
	Position float64 `json:"position"`
}

type seekOut struct {
	Time float64 `json:"time"`
}

type errorOut struct {
	Message string `json:"message"`
}

// envelope marshals an outbound event. Payloads are our own types, so
// marshalling cannot fail.
func envelope(typ string, v any) []byte {
	var data json.RawMessage
	if v != nil {
		data, _ = json.Marshal(v)
	}
	b, _ := json.Marshal(Envelope{Type: typ, Data: data})
	return b
}
