// Package ats reads job boards through the public APIs of applicant tracking systems.
package ats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/internal/normalize"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// JSONFetcher is the slice of the fetcher the vendor clients need
type JSONFetcher interface {
	GetJSON(ctx context.Context, url string, out interface{}) error
	PostJSON(ctx context.Context, url string, payload, out interface{}) error
}

// vendorFunc fetches every posting of one board
type vendorFunc func(ctx context.Context, f JSONFetcher, company *models.CompanyConfig) ([]normalize.RawJob, error)

// Client dispatches a company to its ATS vendor
type Client struct {
	fetcher JSONFetcher
	vendors map[string]vendorFunc
	logger  types.Logger
	now     func() time.Time
}

// New creates an ATS client with every supported vendor registered
func New(fetcher JSONFetcher) *Client {
	return &Client{
		fetcher: fetcher,
		vendors: map[string]vendorFunc{
			"greenhouse":      fetchGreenhouse,
			"lever":           fetchLever,
			"ashby":           fetchAshby,
			"smartrecruiters": fetchSmartRecruiters,
			"workday":         fetchWorkday,
		},
		logger: logging.Component("ats_client"),
		now:    time.Now,
	}
}

func (c *Client) Name() string { return config.StrategyATS }

func (c *Client) Supports(company *models.CompanyConfig) bool {
	return company.ATS != nil && company.ATS.Type != ""
}

// Vendors lists the registered vendor keys
func (c *Client) Vendors() []string {
	names := make([]string, 0, len(c.vendors))
	for name := range c.vendors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) Extract(ctx context.Context, company *models.CompanyConfig) ([]models.ScrapedJob, error) {
	if company.ATS == nil {
		return nil, utils.NewConfigurationError("company has no ATS configured")
	}
	vendor := strings.ToLower(strings.TrimSpace(company.ATS.Type))
	fetch, ok := c.vendors[vendor]
	if !ok {
		return nil, utils.NewUnsupportedError(fmt.Sprintf("ATS vendor %q is not supported", company.ATS.Type))
	}

	raws, err := fetch(ctx, c.fetcher, company)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, utils.NewNoJobsError(fmt.Sprintf("%s board returned no postings", vendor))
	}

	c.logger.Debug("ATS board fetched", map[string]interface{}{
		"company_id": company.ID,
		"vendor":     vendor,
		"postings":   len(raws),
	})

	now := c.now()
	jobs := make([]models.ScrapedJob, 0, len(raws))
	for _, raw := range raws {
		raw.ATSVendor = vendor
		jobs = append(jobs, normalize.Build(company, raw, models.MethodAPI, now))
	}
	return jobs, nil
}

// boardID returns the configured board or a configuration error
func boardID(company *models.CompanyConfig) (string, error) {
	id := strings.TrimSpace(company.ATS.BoardID)
	if id == "" {
		return "", utils.NewConfigurationError(fmt.Sprintf("%s requires ats.board_id", company.ATS.Type))
	}
	return id, nil
}

// endpoint prefers the configured api_url over the vendor default
func endpoint(company *models.CompanyConfig, format string, args ...interface{}) string {
	if company.ATS.APIURL != "" {
		return company.ATS.APIURL
	}
	return fmt.Sprintf(format, args...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func boolPtr(b bool) *bool { return &b }
