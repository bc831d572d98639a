package dto

import (
	"net/url"
	"time"

	"bgRemover/worker/models"
)

type ItemResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Error       string `json:"error,omitempty"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url"`
	ResultURL   string `json:"result_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ListResponse struct {
	Items      []ItemResponse `json:"items"`
	Processing bool           `json:"processing"`
	Ready      int            `json:"ready"`
}

type IngestResponse struct {
	Received int            `json:"received"`
	Accepted int            `json:"accepted"`
	Items    []ItemResponse `json:"items"`
}

type StatusResponse struct {
	Processing  bool           `json:"processing"`
	Waiting     int            `json:"waiting"`
	InFlight    int            `json:"in_flight"`
	Total       int            `json:"total"`
	Counts      map[string]int `json:"counts"`
	LiveHandles int            `json:"live_handles"`
}

type ClearResponse struct {
	Removed int `json:"removed"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func ToItemResponse(item models.Item) ItemResponse {
	base := "/items/" + url.PathEscape(item.ID)
	resp := ItemResponse{
		ID:         item.ID,
		Name:       item.DisplayName,
		Status:     string(item.Status),
		Progress:   item.Progress,
		Error:      item.Error,
		SourceType: item.SourceType,
		SourceURL:  base + "/source",
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.Status == models.StatusDone && item.ResultHandle != "" {
		resp.ResultURL = item.ResultHandle
	}
	if item.HasResult() {
		resp.DownloadURL = base + "/download"
	}
	return resp
}

func ToItemResponses(items []models.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, ToItemResponse(it))
	}
	return out
}
