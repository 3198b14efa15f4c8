package ats

import (
	"context"
	"net/url"
	"strings"

	"harvest-engine/internal/normalize"
	"harvest-engine/pkg/models"
)

type ashbyResponse struct {
	Jobs []struct {
		Title            string `json:"title"`
		Location         string `json:"location"`
		Department       string `json:"department"`
		Team             string `json:"team"`
		EmploymentType   string `json:"employmentType"`
		WorkplaceType    string `json:"workplaceType"`
		IsRemote         bool   `json:"isRemote"`
		IsListed         *bool  `json:"isListed"`
		DescriptionHTML  string `json:"descriptionHtml"`
		DescriptionPlain string `json:"descriptionPlain"`
		JobURL           string `json:"jobUrl"`
		PublishedAt      string `json:"publishedAt"`
		Compensation     *struct {
			SummaryComponents []struct {
				CompensationType string  `json:"compensationType"`
				Interval         string  `json:"interval"`
				CurrencyCode     string  `json:"currencyCode"`
				MinValue         float64 `json:"minValue"`
				MaxValue         float64 `json:"maxValue"`
			} `json:"summaryComponents"`
		} `json:"compensation"`
	} `json:"jobs"`
}

func fetchAshby(ctx context.Context, f JSONFetcher, company *models.CompanyConfig) ([]normalize.RawJob, error) {
	board, err := boardID(company)
	if err != nil && company.ATS.APIURL == "" {
		return nil, err
	}

	u := endpoint(company, "https://api.ashbyhq.com/posting-api/job-board/%s?includeCompensation=true", url.PathEscape(board))
	var resp ashbyResponse
	if err := f.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	raws := make([]normalize.RawJob, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		if j.Title == "" || (j.IsListed != nil && !*j.IsListed) {
			continue
		}
		raw := normalize.RawJob{
			Title:          j.Title,
			Location:       j.Location,
			Department:     firstNonEmpty(j.Department, j.Team),
			Description:    firstNonEmpty(j.DescriptionPlain, j.DescriptionHTML),
			EmploymentType: j.EmploymentType,
			URL:            j.JobURL,
			PostedAt:       j.PublishedAt,
		}
		switch {
		case j.IsRemote || strings.EqualFold(j.WorkplaceType, "remote"):
			raw.Remote = boolPtr(true)
			raw.WorkTypeHint = "remote"
		case strings.EqualFold(j.WorkplaceType, "hybrid"):
			raw.WorkTypeHint = "hybrid"
		}
		if j.Compensation != nil {
			for _, c := range j.Compensation.SummaryComponents {
				if !strings.EqualFold(c.CompensationType, "salary") {
					continue
				}
				s := normalize.NewSalary(c.MinValue, c.MaxValue, c.CurrencyCode, ashbyInterval(c.Interval))
				raw.Salary = &s
				break
			}
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// ashbyInterval maps "1 YEAR", "1 HOUR" style intervals to a period word
func ashbyInterval(interval string) string {
	fields := strings.Fields(interval)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
