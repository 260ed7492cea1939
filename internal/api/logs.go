package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/uvcrtsp/internal/api/models"
	"github.com/smazurov/uvcrtsp/internal/logging"
)

// registerLogRoutes registers the recent log endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Logs",
		Description: "Most recent log entries from the in-memory buffer, oldest first",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		data := models.LogsData{Entries: []models.LogEntry{}}

		buffer := logging.GetBuffer()
		if buffer == nil {
			return &models.LogsResponse{Body: data}, nil
		}

		// Filter before limiting so a module query still returns up to limit entries.
		entries := buffer.Tail(0)
		for i := len(entries) - 1; i >= 0 && len(data.Entries) < input.Limit; i-- {
			entry := entries[i]
			if input.Module != "" && entry.Module != input.Module {
				continue
			}
			data.Entries = append(data.Entries, models.LogEntry{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		}
		for i, j := 0, len(data.Entries)-1; i < j; i, j = i+1, j-1 {
			data.Entries[i], data.Entries[j] = data.Entries[j], data.Entries[i]
		}
		data.Count = len(data.Entries)
		return &models.LogsResponse{Body: data}, nil
	})
}
