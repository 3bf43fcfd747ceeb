package controller

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/setarcos/birdroom/internal/modules/readings/service"
	"github.com/setarcos/birdroom/internal/modules/readings/types"
	"github.com/setarcos/birdroom/internal/utils"
)

const (
	msgMissingFields = "Bad Request: Missing room_id or temperature"
	msgIngestFailed  = "Invalid JSON or Database Error"
	msgDatabaseError = "Database error"
)

type addResponse struct {
	Success bool `json:"success"`
}

type ingestErrorResponse struct {
	Error string `json:"error"`
}

type tempResponse struct {
	Success bool            `json:"success"`
	Data    []types.Reading `json:"data"`
}

type tempErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (c *readingsControllerImpl) handleAdd(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAddBody))
	if err != nil {
		slog.Warn("add: read body failed", "error", err)
		utils.WriteJSON(w, http.StatusBadRequest, ingestErrorResponse{Error: msgIngestFailed})
		return
	}

	err = c.service.Add(r.Context(), service.SourceHTTP, body)
	if err == nil {
		utils.WriteJSON(w, http.StatusOK, addResponse{Success: true})
		return
	}

	var ie *service.IngestError
	switch {
	case errors.As(err, &ie) && ie.Kind == service.KindMissing:
		utils.WriteText(w, http.StatusBadRequest, msgMissingFields)
	case errors.As(err, &ie) && ie.Kind == service.KindInvalid:
		utils.WriteText(w, http.StatusBadRequest, "Bad Request: invalid "+ie.Field)
	default:
		utils.WriteJSON(w, http.StatusBadRequest, ingestErrorResponse{Error: msgIngestFailed})
	}
}

func (c *readingsControllerImpl) handleTemp(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.ReadingFilter{
		RoomID:    q.Get("room_id"),
		StartTime: q.Get("start_time"),
		EndTime:   q.Get("end_time"),
	}

	readings, err := c.repository.QueryReadings(r.Context(), filter)
	if err != nil {
		slog.Error("temp: query readings failed", "room_id", filter.RoomID, "error", err)
		utils.WriteJSON(w, http.StatusInternalServerError, tempErrorResponse{
			Success: false,
			Error:   msgDatabaseError,
			Details: err.Error(),
		})
		return
	}

	if readings == nil {
		readings = []types.Reading{}
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	utils.WriteJSON(w, http.StatusOK, tempResponse{Success: true, Data: readings})
}

func (c *readingsControllerImpl) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := c.repository.ListRooms(r.Context())
	if err != nil {
		slog.Error("rooms: list rooms failed", "error", err)
		utils.WriteText(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rooms == nil {
		rooms = []types.Room{}
	}
	utils.WriteJSON(w, http.StatusOK, rooms)
}
