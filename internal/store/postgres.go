package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"log/slog"

	"github.com/PrashantKumarD/audiosync/internal/app"
	"github.com/PrashantKumarD/audiosync/internal/room"
)

type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres connects to postgres and returns a pool wrapper
func NewPostgres(ctx context.Context, cfg app.Config, log *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) UpsertRoom(ctx context.Context, roomID string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO rooms (room_id)
		VALUES ($1)
		ON CONFLICT (room_id) DO NOTHING
	`, roomID)
	return err
}

// AddParticipant purges the old entry for this username and inserts the new
// connection in one transaction, then returns the updated room.
func (p *Postgres) AddParticipant(ctx context.Context, roomID, connectionID, username string) (room.Room, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return room.Room{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM room_participants WHERE room_id = $1 AND username = $2
	`, roomID, username); err != nil {
		return room.Room{}, err
	}
	ct, err := tx.Exec(ctx, `
		INSERT INTO room_participants (room_id, connection_id, username)
		SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM rooms WHERE room_id = $1)
	`, roomID, connectionID, username)
	if err != nil {
		return room.Room{}, err
	}
	if ct.RowsAffected() == 0 {
		return room.Room{}, ErrRoomNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return room.Room{}, err
	}
	return p.GetRoom(ctx, roomID)
}

func (p *Postgres) RemoveParticipantByConn(ctx context.Context, connectionID string) (room.Room, bool, error) {
	var roomID string
	err := p.pool.QueryRow(ctx, `
		DELETE FROM room_participants WHERE connection_id = $1 RETURNING room_id
	`, connectionID).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return room.Room{}, false, nil
	}
	if err != nil {
		return room.Room{}, false, err
	}
	rm, err := p.GetRoom(ctx, roomID)
	if err != nil {
		return room.Room{}, false, err
	}
	return rm, true, nil
}

// DeleteRoomIfEmpty is a single conditional delete so a join racing in after
// the participant removal keeps the room alive.
func (p *Postgres) DeleteRoomIfEmpty(ctx context.Context, roomID string) (bool, error) {
	ct, err := p.pool.Exec(ctx, `
		DELETE FROM rooms
		WHERE room_id = $1
		  AND NOT EXISTS (SELECT 1 FROM room_participants WHERE room_id = $1)
	`, roomID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() > 0 {
		p.log.Info("room.deleted", "roomId", roomID)
		return true, nil
	}
	return false, nil
}

func (p *Postgres) AppendChatMessage(ctx context.Context, roomID string, msg room.ChatMessage) error {
	ct, err := p.pool.Exec(ctx, `
		INSERT INTO room_messages (room_id, username, text, created_at)
		SELECT $1, $2, $3, $4 WHERE EXISTS (SELECT 1 FROM rooms WHERE room_id = $1)
	`, roomID, msg.Username, msg.Text, msg.Timestamp)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (p *Postgres) SetTrack(ctx context.Context, roomID, audioURL string, at time.Time) error {
	ct, err := p.pool.Exec(ctx, `
		UPDATE rooms
		SET current_audio_url = $2,
		    is_playing = FALSE,
		    last_known_time = 0,
		    last_known_time_updated_at = $3
		WHERE room_id = $1
	`, roomID, audioURL, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (p *Postgres) SetPlaybackState(ctx context.Context, roomID string, playing bool, position float64, at time.Time) error {
	ct, err := p.pool.Exec(ctx, `
		UPDATE rooms
		SET is_playing = $2,
		    last_known_time = $3,
		    last_known_time_updated_at = $4
		WHERE room_id = $1
	`, roomID, playing, position, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (p *Postgres) SetPosition(ctx context.Context, roomID string, position float64, at time.Time) error {
	ct, err := p.pool.Exec(ctx, `
		UPDATE rooms
		SET last_known_time = $2,
		    last_known_time_updated_at = $3
		WHERE room_id = $1
	`, roomID, position, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (p *Postgres) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT room_id, current_audio_url, is_playing, last_known_time, last_known_time_updated_at
		FROM rooms
		WHERE room_id = $1
	`, roomID)

	var rm room.Room
	if err := row.Scan(&rm.RoomID, &rm.CurrentAudioURL, &rm.IsPlaying, &rm.LastKnownTime, &rm.LastKnownTimeUpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return room.Room{}, ErrRoomNotFound
		}
		return room.Room{}, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT connection_id, username
		FROM room_participants
		WHERE room_id = $1
		ORDER BY joined_at
	`, roomID)
	if err != nil {
		return room.Room{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var pt room.Participant
		if err := rows.Scan(&pt.ConnectionID, &pt.Username); err != nil {
			return room.Room{}, err
		}
		rm.Participants = append(rm.Participants, pt)
	}
	if err := rows.Err(); err != nil {
		return room.Room{}, err
	}

	msgs, err := p.pool.Query(ctx, `
		SELECT username, text, created_at
		FROM room_messages
		WHERE room_id = $1
		ORDER BY id
	`, roomID)
	if err != nil {
		return room.Room{}, err
	}
	defer msgs.Close()
	for msgs.Next() {
		var m room.ChatMessage
		if err := msgs.Scan(&m.Username, &m.Text, &m.Timestamp); err != nil {
			return room.Room{}, err
		}
		rm.ChatHistory = append(rm.ChatHistory, m)
	}
	return rm, msgs.Err()
}
