package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest-engine/pkg/models"
)

var acme = &models.CompanyConfig{ID: "acme", Name: "Acme Corp", CareerPageURL: "https://acme.example/careers"}

func TestContentHash_StableAcrossScrapes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := RawJob{Title: "Backend Engineer", Location: "Berlin, Germany", Description: "Go and Postgres"}

	first := Build(acme, raw, models.MethodStructuredData, now)
	second := Build(acme, raw, models.MethodHTMLPattern, now.Add(48*time.Hour))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, ContentHash("ACME", "  backend   engineer", "berlin, germany"), ContentHash("acme", "Backend Engineer", "Berlin, Germany"))
	assert.NotEqual(t, first.ID, ContentHash("acme", "Backend Engineer", "Paris, France"))
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "senior backend engineer", NormalizeTitle("Sr. Back-End Eng."))
	assert.Equal(t, NormalizeTitle("Senior Backend Engineer"), NormalizeTitle("Sr. Backend Engineer"))
	assert.Equal(t, "software engineer ii", NormalizeTitle("SWE II"))
	assert.Equal(t, "developpeur c++", NormalizeTitle("Développeur C++"))
}

func TestBuild_FillsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := Build(acme, RawJob{Title: "Office Manager"}, models.MethodHTMLPattern, now)

	assert.Equal(t, "office manager", job.NormalizedTitle)
	assert.Equal(t, models.UnknownValue, job.Location.Normalized)
	assert.False(t, job.Location.IsRemote)
	assert.Equal(t, models.WorkTypeOnsite, job.WorkType)
	assert.Equal(t, EmploymentFullTime, job.EmploymentType)
	assert.Equal(t, LevelMid, job.ExperienceLevel)
	assert.False(t, job.Salary.IsDisclosed)
	assert.Equal(t, models.DefaultCurrency, job.Salary.Currency)
	assert.NotNil(t, job.Requirements)
	assert.NotNil(t, job.Responsibilities)
	assert.NotNil(t, job.Skills)
	assert.Equal(t, acme.CareerPageURL, job.ExternalURL)
	assert.Equal(t, models.SourceCareerPage, job.Source.Type)
	assert.Equal(t, models.JobStatusActive, job.Status)
	assert.Equal(t, now, job.PostedDate)
	assert.Equal(t, 0.5, job.Confidence)
}

func TestBuild_DerivesFields(t *testing.T) {
	now := time.Now()
	job := Build(acme, RawJob{
		Title:          "Senior Platform Engineer",
		Location:       "Remote - US, Remote - US",
		Description:    "<p>We use <b>Golang</b>, Kubernetes and AWS.</p><p>Pay: $150k - $180k per year</p>",
		URL:            "/jobs/123",
		EmploymentType: "FULL_TIME",
		PostedAt:       "2026-02-20",
		ATSVendor:      "Greenhouse",
	}, models.MethodAPI, now)

	assert.Equal(t, "https://acme.example/jobs/123", job.ExternalURL)
	assert.True(t, job.Location.IsRemote)
	assert.Equal(t, "Remote - US", job.Location.Normalized)
	assert.Equal(t, models.WorkTypeRemote, job.WorkType)
	assert.Equal(t, LevelSenior, job.ExperienceLevel)
	assert.ElementsMatch(t, []string{"Go", "Kubernetes", "AWS"}, job.Skills)
	require.True(t, job.Salary.IsDisclosed)
	assert.Equal(t, 150000.0, job.Salary.Min)
	assert.Equal(t, 180000.0, job.Salary.Max)
	assert.Equal(t, "USD", job.Salary.Currency)
	assert.Equal(t, models.SourceATS, job.Source.Type)
	assert.Equal(t, "greenhouse", job.Source.ATSVendor)
	assert.Equal(t, 2026, job.PostedDate.Year())
	assert.NotContains(t, job.Description, "<p>")
}

func TestParseSalary(t *testing.T) {
	s := ParseSalary("Compensation: €55,000 to €70,000")
	assert.True(t, s.IsDisclosed)
	assert.Equal(t, "EUR", s.Currency)
	assert.Equal(t, 55000.0, s.Min)

	s = ParseSalary("$45 - $60 per hour")
	assert.Equal(t, "hourly", s.Period)

	assert.False(t, ParseSalary("3-5 years of experience").IsDisclosed)
}

func TestInferWorkTypeAndLevel(t *testing.T) {
	assert.Equal(t, models.WorkTypeHybrid, InferWorkType("", "London (Hybrid)", "Designer", ""))
	assert.Equal(t, models.WorkTypeRemote, InferWorkType("TELECOMMUTE", "", "", ""))
	assert.Equal(t, models.WorkTypeOnsite, InferWorkType("", "Austin, TX", "Engineer", "Great team"))

	assert.Equal(t, LevelIntern, InferExperienceLevel("Software Engineering Intern", ""))
	assert.Equal(t, LevelLead, InferExperienceLevel("Staff Engineer", ""))
	assert.Equal(t, LevelExecutive, InferExperienceLevel("VP of Engineering", ""))
}

func TestExtractSkills_AvoidsWordCollisions(t *testing.T) {
	assert.Empty(t, ExtractSkills("We are a good team ready to go places"))
	assert.Equal(t, []string{"Go"}, ExtractSkills("Backend in Go"))
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, 2024, ParseDate("1717200000000").Year())
	assert.Equal(t, 2024, ParseDate("1717200000").Year())
	assert.Equal(t, time.March, ParseDate("March 5, 2026").Month())
	assert.True(t, ParseDate("yesterday").IsZero())
}
