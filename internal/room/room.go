package room

import "time"

// Participant is one active connection inside a room. ConnectionID is unique
// per live connection; Username is whatever the client announced on join and
// may repeat across rooms.
type Participant struct {
	ConnectionID string `json:"connectionId" bson:"connectionId"`
	Username     string `json:"username" bson:"username"`
}

type ChatMessage struct {
	Username  string    `json:"username" bson:"username"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Room is the authoritative per-room document. LastKnownTime is only a
// snapshot anchored to LastKnownTimeUpdatedAt; while IsPlaying is true the
// live position must be derived with EstimatePosition, never read directly.
type Room struct {
	RoomID                 string        `json:"roomId" bson:"roomId"`
	Participants           []Participant `json:"participants" bson:"participants"`
	ChatHistory            []ChatMessage `json:"chatHistory" bson:"chatHistory"`
	CurrentAudioURL        string        `json:"currentAudioUrl" bson:"currentAudioUrl"`
	IsPlaying              bool          `json:"isPlaying" bson:"isPlaying"`
	LastKnownTime          float64       `json:"lastKnownTime" bson:"lastKnownTime"`
	LastKnownTimeUpdatedAt time.Time     `json:"lastKnownTimeUpdatedAt" bson:"lastKnownTimeUpdatedAt"`
}

// Position returns the room's live playback position at now.
func (r Room) Position(now time.Time) float64 {
	return EstimatePosition(r.LastKnownTime, r.LastKnownTimeUpdatedAt, r.IsPlaying, now)
}
