package ats

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"harvest-engine/internal/normalize"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

const (
	smartRecruitersPageSize = 100
	maxPages                = 25
)

type smartRecruitersResponse struct {
	Content []struct {
		ID           string `json:"id"`
		UUID         string `json:"uuid"`
		Name         string `json:"name"`
		Ref          string `json:"ref"`
		ReleasedDate string `json:"releasedDate"`
		Location     struct {
			City    string `json:"city"`
			Region  string `json:"region"`
			Country string `json:"country"`
			Remote  bool   `json:"remote"`
		} `json:"location"`
		Department struct {
			Label string `json:"label"`
		} `json:"department"`
		TypeOfEmployment struct {
			Label string `json:"label"`
		} `json:"typeOfEmployment"`
		ExperienceLevel struct {
			Label string `json:"label"`
		} `json:"experienceLevel"`
	} `json:"content"`
	TotalFound int `json:"totalFound"`
}

func fetchSmartRecruiters(ctx context.Context, f JSONFetcher, company *models.CompanyConfig) ([]normalize.RawJob, error) {
	board, err := boardID(company)
	if err != nil && company.ATS.APIURL == "" {
		return nil, err
	}
	base := endpoint(company, "https://api.smartrecruiters.com/v1/companies/%s/postings", url.PathEscape(board))

	var raws []normalize.RawJob
	for page, offset := 0, 0; page < maxPages; page++ {
		pageURL, err := withPaging(base, smartRecruitersPageSize, offset)
		if err != nil {
			return nil, err
		}
		var resp smartRecruitersResponse
		if err := f.GetJSON(ctx, pageURL, &resp); err != nil {
			if len(raws) > 0 {
				break
			}
			return nil, err
		}

		for _, p := range resp.Content {
			id := firstNonEmpty(p.ID, p.UUID)
			if p.Name == "" {
				continue
			}
			raw := normalize.RawJob{
				Title:          p.Name,
				Location:       joinNonEmpty(", ", p.Location.City, p.Location.Region, p.Location.Country),
				Department:     p.Department.Label,
				EmploymentType: p.TypeOfEmployment.Label,
				ExperienceHint: p.ExperienceLevel.Label,
				PostedAt:       p.ReleasedDate,
			}
			if id != "" && board != "" {
				raw.URL = fmt.Sprintf("https://jobs.smartrecruiters.com/%s/%s", board, id)
			}
			if p.Location.Remote {
				raw.Remote = boolPtr(true)
			}
			raws = append(raws, raw)
		}

		offset += len(resp.Content)
		if len(resp.Content) == 0 || offset >= resp.TotalFound {
			break
		}
	}
	return raws, nil
}

// withPaging sets limit and offset on base, keeping any existing query
func withPaging(base string, limit, offset int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", utils.NewConfigurationError(fmt.Sprintf("invalid ATS endpoint %q", base)).WithCause(err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
