package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// RawJob is what a strategy managed to read before canonicalization. Only Title is required.
type RawJob struct {
	Title            string
	Location         string
	Department       string
	Description      string // plain text or an HTML fragment
	Requirements     []string
	Responsibilities []string
	Skills           []string
	WorkTypeHint     string
	EmploymentType   string
	ExperienceHint   string
	Salary           *models.Salary
	SalaryText       string
	URL              string
	PostedAt         string
	PostedTime       time.Time
	Remote           *bool
	ATSVendor        string
	Confidence       float64
}

// methodConfidence is the default trust assigned to each scrape method
var methodConfidence = map[string]float64{
	models.MethodAPI:            1.0,
	models.MethodStructuredData: 0.95,
	models.MethodEmbeddedState:  0.8,
	models.MethodHeadless:       0.7,
	models.MethodLLM:            0.6,
	models.MethodHTMLPattern:    0.5,
}

// ContentHash derives the stable job id from company, title and location
func ContentHash(company, title, location string) string {
	key := strings.Join([]string{
		strings.ToLower(CleanText(company)),
		strings.ToLower(CleanText(title)),
		strings.ToLower(CleanText(location)),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// CompanyKey identifies the company a job belongs to for hashing and dedup
func CompanyKey(company *models.CompanyConfig) string {
	if company.ID != "" {
		return company.ID
	}
	return company.Name
}

// Build canonicalizes a raw job, filling every field a strategy left empty with an explicit default
func Build(company *models.CompanyConfig, raw RawJob, method string, now time.Time) models.ScrapedJob {
	title := CleanText(raw.Title)
	description := HTMLToText(raw.Description)
	rawLocation := CleanText(raw.Location)
	location := NormalizeLocation(rawLocation)

	isRemote := IsRemoteLocation(location)
	if raw.Remote != nil {
		isRemote = *raw.Remote
	}

	workHint := raw.WorkTypeHint
	if workHint == "" && isRemote {
		workHint = models.WorkTypeRemote
	}
	workType := InferWorkType(workHint, location, title, description)
	if workType == models.WorkTypeRemote {
		isRemote = true
	}

	normalizedLocation := location
	if normalizedLocation == "" {
		if isRemote {
			normalizedLocation = "Remote"
		} else {
			normalizedLocation = models.UnknownValue
		}
	}

	salary := UndisclosedSalary()
	switch {
	case raw.Salary != nil && raw.Salary.IsDisclosed:
		salary = *raw.Salary
	case raw.SalaryText != "":
		salary = ParseSalary(raw.SalaryText)
	case description != "":
		salary = ParseSalary(description)
	}

	skills := DedupeStrings(raw.Skills)
	if len(skills) == 0 {
		skills = ExtractSkills(title, description)
	}

	posted := raw.PostedTime
	if posted.IsZero() {
		posted = ParseDate(raw.PostedAt)
	}
	if posted.IsZero() {
		posted = now
	}

	confidence := raw.Confidence
	if confidence <= 0 {
		confidence = methodConfidence[method]
	}

	source := models.Source{
		Type:         models.SourceCareerPage,
		ScrapeMethod: method,
		URL:          company.CareerPageURL,
	}
	if raw.ATSVendor != "" || method == models.MethodAPI {
		source.Type = models.SourceATS
		source.ATSVendor = strings.ToLower(raw.ATSVendor)
	}

	externalURL := utils.ResolveURL(company.CareerPageURL, raw.URL)
	if externalURL == "" {
		externalURL = company.CareerPageURL
	}

	department := CleanText(raw.Department)
	if department == "" {
		department = NotSpecified
	}

	return models.ScrapedJob{
		ID:               ContentHash(CompanyKey(company), title, rawLocation),
		Title:            title,
		NormalizedTitle:  NormalizeTitle(title),
		Company:          company.Name,
		CompanyID:        company.ID,
		Location:         models.Location{Raw: rawLocation, Normalized: normalizedLocation, IsRemote: isRemote},
		Department:       department,
		Description:      description,
		Requirements:     nonNil(DedupeStrings(raw.Requirements)),
		Responsibilities: nonNil(DedupeStrings(raw.Responsibilities)),
		Skills:           nonNil(skills),
		WorkType:         workType,
		EmploymentType:   InferEmploymentType(raw.EmploymentType),
		ExperienceLevel:  InferExperienceLevel(title, raw.ExperienceHint),
		Salary:           salary,
		ExternalURL:      externalURL,
		Source:           source,
		Confidence:       confidence,
		PostedDate:       posted.UTC(),
		ScrapedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
		Status:           models.JobStatusActive,
	}
}

// NotSpecified is the explicit default for free-text fields nobody reported
const NotSpecified = models.NotSpecifiedValue

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate accepts the date shapes vendors publish, including epoch seconds and milliseconds.
// The zero time means unknown.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch {
		case n > 1e12:
			return time.UnixMilli(n).UTC()
		case n > 1e9:
			return time.Unix(n, 0).UTC()
		}
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
