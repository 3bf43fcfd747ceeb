package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/setarcos/birdroom/internal/db"
	"github.com/setarcos/birdroom/internal/modules/readings/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/list-rooms.sql
var listRoomsSQL string

type ReadingsRepository interface {
	InsertReading(ctx context.Context, r types.NewReading) error
	QueryReadings(ctx context.Context, f types.ReadingFilter) ([]types.Reading, error)
	ListRooms(ctx context.Context) ([]types.Room, error)
}

type repositoryImpl struct {
	gw db.Gateway
}

func NewRepository(gw db.Gateway) ReadingsRepository {
	return &repositoryImpl{gw: gw}
}

func (r *repositoryImpl) InsertReading(ctx context.Context, rd types.NewReading) error {
	stmt, err := r.gw.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("prepare insert reading: %w", err)
	}
	defer closeStmt(stmt, "insert reading")

	var humidity any
	if rd.Humidity != nil {
		humidity = *rd.Humidity
	}
	if _, err := stmt.ExecContext(ctx, rd.RoomID, rd.Temperature, humidity); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) QueryReadings(ctx context.Context, f types.ReadingFilter) ([]types.Reading, error) {
	query, args := BuildReadingsQuery(f)

	stmt, err := r.gw.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer closeStmt(stmt, "query readings")

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()

	out := []types.Reading{}
	for rows.Next() {
		var (
			rec      types.Reading
			humidity sql.NullFloat64
		)
		if err := rows.Scan(&rec.RoomID, &rec.Temperature, &humidity, &rec.RecordedAt); err != nil {
			return nil, err
		}
		if humidity.Valid {
			h := humidity.Float64
			rec.Humidity = &h
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) ListRooms(ctx context.Context) ([]types.Room, error) {
	stmt, err := r.gw.PrepareContext(ctx, listRoomsSQL)
	if err != nil {
		return nil, err
	}
	defer closeStmt(stmt, "list rooms")

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close rooms rows", "error", err)
		}
	}()

	out := []types.Room{}
	for rows.Next() {
		var room types.Room
		if err := rows.Scan(&room.ID, &room.Name); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func closeStmt(stmt *sql.Stmt, what string) {
	if err := stmt.Close(); err != nil {
		slog.Error("close statement", "statement", what, "error", err)
	}
}
