package ats

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"harvest-engine/internal/normalize"
	"harvest-engine/pkg/models"
)

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"` // title
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"` // ms epoch
	Description      string `json:"description"`
	DescriptionPlain string `json:"descriptionPlain"`
	WorkplaceType    string `json:"workplaceType"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Department string `json:"department"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	Lists []struct {
		Text    string `json:"text"`
		Content string `json:"content"` // <li> items
	} `json:"lists"`
	SalaryRange *struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
		Interval string  `json:"interval"`
	} `json:"salaryRange"`
}

func fetchLever(ctx context.Context, f JSONFetcher, company *models.CompanyConfig) ([]normalize.RawJob, error) {
	board, err := boardID(company)
	if err != nil && company.ATS.APIURL == "" {
		return nil, err
	}

	u := endpoint(company, "https://api.lever.co/v0/postings/%s?mode=json", url.PathEscape(board))
	var postings []leverPosting
	if err := f.GetJSON(ctx, u, &postings); err != nil {
		return nil, err
	}

	raws := make([]normalize.RawJob, 0, len(postings))
	for _, p := range postings {
		if p.Text == "" {
			continue
		}
		raw := normalize.RawJob{
			Title:          p.Text,
			Location:       p.Categories.Location,
			Department:     firstNonEmpty(p.Categories.Department, p.Categories.Team),
			Description:    firstNonEmpty(p.DescriptionPlain, p.Description),
			EmploymentType: p.Categories.Commitment,
			WorkTypeHint:   leverWorkplace(p.WorkplaceType),
			URL:            p.HostedURL,
		}
		if p.CreatedAt > 0 {
			raw.PostedAt = strconv.FormatInt(p.CreatedAt, 10)
		}
		for _, list := range p.Lists {
			items := listItems(list.Content)
			heading := strings.ToLower(list.Text)
			switch {
			case strings.Contains(heading, "requirement") || strings.Contains(heading, "qualification") || strings.Contains(heading, "looking for"):
				raw.Requirements = append(raw.Requirements, items...)
			case strings.Contains(heading, "responsib") || strings.Contains(heading, "you will") || strings.Contains(heading, "you'll"):
				raw.Responsibilities = append(raw.Responsibilities, items...)
			}
		}
		if p.SalaryRange != nil {
			s := normalize.NewSalary(p.SalaryRange.Min, p.SalaryRange.Max, p.SalaryRange.Currency, p.SalaryRange.Interval)
			raw.Salary = &s
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func leverWorkplace(t string) string {
	switch strings.ToLower(t) {
	case "remote":
		return "remote"
	case "hybrid":
		return "hybrid"
	case "on-site", "onsite":
		return "onsite"
	}
	return ""
}

var liSplitter = strings.NewReplacer("<li>", "\n", "</li>", "\n")

// listItems turns an HTML list into one plain-text entry per item
func listItems(fragment string) []string {
	var out []string
	for _, part := range strings.Split(liSplitter.Replace(fragment), "\n") {
		if text := normalize.HTMLToText(part); text != "" {
			out = append(out, text)
		}
	}
	return out
}
