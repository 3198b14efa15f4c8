package ats

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"harvest-engine/internal/normalize"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

const workdayPageSize = 20

type workdayRequest struct {
	AppliedFacets map[string]interface{} `json:"appliedFacets"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
	SearchText    string                 `json:"searchText"`
}

type workdayResponse struct {
	Total       int `json:"total"`
	JobPostings []struct {
		Title         string `json:"title"`
		ExternalPath  string `json:"externalPath"`
		LocationsText string `json:"locationsText"`
		PostedOn      string `json:"postedOn"` // relative text such as "Posted 3 Days Ago"
	} `json:"jobPostings"`
}

// workdayBoard is a tenant site parsed from a myworkdayjobs.com careers URL
type workdayBoard struct {
	scheme, host, tenant, site string
}

// parseWorkdayBoard reads https://{tenant}.wd5.myworkdayjobs.com/[locale/]{site}
func parseWorkdayBoard(raw string) (workdayBoard, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return workdayBoard{}, utils.NewConfigurationError(fmt.Sprintf("invalid Workday board URL %q", raw))
	}
	labels := strings.Split(u.Host, ".")
	if len(labels) < 3 {
		return workdayBoard{}, utils.NewConfigurationError(fmt.Sprintf("unexpected Workday host %q", u.Host))
	}

	var segs []string
	for _, s := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if s != "" && !isLocale(s) {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return workdayBoard{}, utils.NewConfigurationError(fmt.Sprintf("cannot derive Workday site from %q", raw))
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return workdayBoard{scheme: scheme, host: u.Host, tenant: labels[0], site: segs[len(segs)-1]}, nil
}

func isLocale(s string) bool {
	return len(s) == 5 && s[2] == '-'
}

func (b workdayBoard) jobsEndpoint() string {
	return fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", b.scheme, b.host, b.tenant, b.site)
}

func (b workdayBoard) jobURL(externalPath string) string {
	if externalPath == "" {
		return ""
	}
	if strings.HasPrefix(externalPath, "http") {
		return externalPath
	}
	return fmt.Sprintf("%s://%s/%s%s", b.scheme, b.host, b.site, "/"+strings.TrimPrefix(externalPath, "/"))
}

// fetchWorkday pages through the CXS jobs endpoint. The board comes from
// ats.board_id when it is a URL, otherwise from the career page URL.
func fetchWorkday(ctx context.Context, f JSONFetcher, company *models.CompanyConfig) ([]normalize.RawJob, error) {
	source := company.CareerPageURL
	if strings.HasPrefix(company.ATS.BoardID, "http") {
		source = company.ATS.BoardID
	}
	board, err := parseWorkdayBoard(source)
	if err != nil && company.ATS.APIURL == "" {
		return nil, err
	}
	endpoint := company.ATS.APIURL
	if endpoint == "" {
		endpoint = board.jobsEndpoint()
	}

	now := time.Now()
	var raws []normalize.RawJob
	for page, offset := 0, 0; page < maxPages; page++ {
		var resp workdayResponse
		req := workdayRequest{
			AppliedFacets: map[string]interface{}{},
			Limit:         workdayPageSize,
			Offset:        offset,
		}
		if err := f.PostJSON(ctx, endpoint, req, &resp); err != nil {
			if len(raws) > 0 {
				break
			}
			return nil, err
		}

		for _, p := range resp.JobPostings {
			if p.Title == "" {
				continue
			}
			raw := normalize.RawJob{
				Title:      p.Title,
				Location:   p.LocationsText,
				URL:        board.jobURL(p.ExternalPath),
				PostedTime: parseWorkdayPosted(p.PostedOn, now),
			}
			raws = append(raws, raw)
		}

		offset += len(resp.JobPostings)
		if len(resp.JobPostings) == 0 || offset >= resp.Total {
			break
		}
	}
	return raws, nil
}

var postedDaysAgo = regexp.MustCompile(`(?i)(\d+)\+?\s+days?\s+ago`)

// parseWorkdayPosted turns "Posted Today", "Posted Yesterday" and "Posted N[+] Days Ago"
// into a date. "30+" is read as 30. Unrecognized text yields the zero time.
func parseWorkdayPosted(text string, now time.Time) time.Time {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "":
		return time.Time{}
	case strings.Contains(lower, "today"):
		return now.UTC()
	case strings.Contains(lower, "yesterday"):
		return now.AddDate(0, 0, -1).UTC()
	}
	m := postedDaysAgo.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days).UTC()
}
