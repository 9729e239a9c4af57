package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"log/slog"

	"github.com/PrashantKumarD/audiosync/internal/app"
	"github.com/PrashantKumarD/audiosync/internal/room"
)

// Mongo stores each room as a single document and leans on the server-side
// update operators ($setOnInsert, $pull, $addToSet, $push) for atomicity.
type Mongo struct {
	client *mongo.Client
	rooms  *mongo.Collection
	log    *slog.Logger
}

// NewMongo connects to mongo and verifies connectivity
func NewMongo(ctx context.Context, cfg app.Config, log *slog.Logger) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}
	return &Mongo{
		client: client,
		rooms:  client.Database(cfg.MongoDB).Collection("rooms"),
		log:    log,
	}, nil
}

func (m *Mongo) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.client.Disconnect(ctx)
}

func (m *Mongo) UpsertRoom(ctx context.Context, roomID string) error {
	_, err := m.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$setOnInsert": bson.M{
			"roomId":                 roomID,
			"participants":           []room.Participant{},
			"chatHistory":            []room.ChatMessage{},
			"currentAudioUrl":        "",
			"isPlaying":              false,
			"lastKnownTime":          0.0,
			"lastKnownTimeUpdatedAt": time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *Mongo) AddParticipant(ctx context.Context, roomID, connectionID, username string) (room.Room, error) {
	// Purge the stale entry for this username first
	if _, err := m.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$pull": bson.M{"participants": bson.M{"username": username}}},
	); err != nil {
		return room.Room{}, err
	}

	res := m.rooms.FindOneAndUpdate(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$addToSet": bson.M{"participants": room.Participant{ConnectionID: connectionID, Username: username}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var rm room.Room
	if err := res.Decode(&rm); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return room.Room{}, ErrRoomNotFound
		}
		return room.Room{}, err
	}
	return rm, nil
}

func (m *Mongo) RemoveParticipantByConn(ctx context.Context, connectionID string) (room.Room, bool, error) {
	res := m.rooms.FindOneAndUpdate(ctx,
		bson.M{"participants.connectionId": connectionID},
		bson.M{"$pull": bson.M{"participants": bson.M{"connectionId": connectionID}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var rm room.Room
	if err := res.Decode(&rm); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return room.Room{}, false, nil
		}
		return room.Room{}, false, err
	}
	return rm, true, nil
}

func (m *Mongo) DeleteRoomIfEmpty(ctx context.Context, roomID string) (bool, error) {
	res, err := m.rooms.DeleteOne(ctx, bson.M{
		"roomId":       roomID,
		"participants": bson.M{"$size": 0},
	})
	if err != nil {
		return false, err
	}
	if res.DeletedCount > 0 {
		m.log.Info("room.deleted", "roomId", roomID)
		return true, nil
	}
	return false, nil
}

func (m *Mongo) AppendChatMessage(ctx context.Context, roomID string, msg room.ChatMessage) error {
	res, err := m.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$push": bson.M{"chatHistory": msg}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (m *Mongo) SetTrack(ctx context.Context, roomID, audioURL string, at time.Time) error {
	res, err := m.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$set": bson.M{
			"currentAudioUrl":        audioURL,
			"isPlaying":              false,
			"lastKnownTime":          0.0,
			"lastKnownTimeUpdatedAt": at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (m *Mongo) SetPlaybackState(ctx context.Context, roomID string, playing bool, position float64, at time.Time) error {
	res, err := m.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$set": bson.M{
			"isPlaying":              playing,
			"lastKnownTime":          position,
			"lastKnownTimeUpdatedAt": at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (m *Mongo) SetPosition(ctx context.Context, roomID string, position float64, at time.Time) error {
	res, err := m.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$set": bson.M{
			"lastKnownTime":          position,
			"lastKnownTimeUpdatedAt": at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (m *Mongo) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	var rm room.Room
	err := m.rooms.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&rm)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return room.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return room.Room{}, err
	}
	return rm, nil
}
