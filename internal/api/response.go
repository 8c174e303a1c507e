package api

import (
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

type alertResponse struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"alert_id"`
	Event       string    `json:"event"`
	Headline    string    `json:"headline"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Area        string    `json:"area"`
	CreatedAt   time.Time `json:"created_at"`
}

type alertPage struct {
	Count    int             `json:"count"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Pages    int             `json:"pages"`
	Results  []alertResponse `json:"results"`
}

func toAlertResponse(a *models.Alert) alertResponse {
	return alertResponse{
		ID:          a.ID,
		SourceID:    a.SourceID,
		Event:       a.Event,
		Headline:    a.Headline,
		Description: a.Description,
		Severity:    string(a.Severity),
		Area:        a.Area,
		CreatedAt:   a.CreatedAt,
	}
}

func newAlertPage(alerts []models.Alert, total, page, pageSize int) alertPage {
	results := make([]alertResponse, 0, len(alerts))
	for i := range alerts {
		results = append(results, toAlertResponse(&alerts[i]))
	}
	pages := (total + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	return alertPage{
		Count:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
		Results:  results,
	}
}
