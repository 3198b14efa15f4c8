package models

// ScrapeBatchRequest is the body of POST /api/v1/scrape
type ScrapeBatchRequest struct {
	Companies []CompanyConfig `json:"companies" validate:"required,min=1,dive"`
}

// ScrapeCompanyRequest is the body of POST /api/v1/scrape/company
type ScrapeCompanyRequest struct {
	Company CompanyConfig `json:"company"`
}

// SearchRequest binds GET /api/v1/jobs/search
type SearchRequest struct {
	Query string `query:"q" validate:"required,min=2"`
}
