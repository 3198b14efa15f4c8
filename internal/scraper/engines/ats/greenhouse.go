package ats

import (
	"context"
	"html"
	"net/url"

	"harvest-engine/internal/normalize"
	"harvest-engine/pkg/models"
)

type greenhouseResponse struct {
	Jobs []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		AbsoluteURL string `json:"absolute_url"`
		UpdatedAt   string `json:"updated_at"`
		Content     string `json:"content"` // entity-escaped HTML
		Location    struct {
			Name string `json:"name"`
		} `json:"location"`
		Departments []struct {
			Name string `json:"name"`
		} `json:"departments"`
	} `json:"jobs"`
}

func fetchGreenhouse(ctx context.Context, f JSONFetcher, company *models.CompanyConfig) ([]normalize.RawJob, error) {
	board, err := boardID(company)
	if err != nil && company.ATS.APIURL == "" {
		return nil, err
	}

	u := endpoint(company, "https://boards-api.greenhouse.io/v1/boards/%s/jobs?content=true", url.PathEscape(board))
	var resp greenhouseResponse
	if err := f.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	raws := make([]normalize.RawJob, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		if j.Title == "" {
			continue
		}
		raw := normalize.RawJob{
			Title:       j.Title,
			Location:    j.Location.Name,
			Description: html.UnescapeString(j.Content),
			URL:         j.AbsoluteURL,
			PostedAt:    j.UpdatedAt,
		}
		if len(j.Departments) > 0 {
			raw.Department = j.Departments[0].Name
		}
		raws = append(raws, raw)
	}
	return raws, nil
}
