package structured

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

type staticPage string

func (p staticPage) GetPage(ctx context.Context, url string) (string, error) {
	return string(p), nil
}

const careersPage = `<html><head>
<script type="application/ld+json">{ "@type": "JobPosting", "title": broken json </script>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@graph": [
    {"@type": "Organization", "name": "Acme"},
    {
      "@type": "JobPosting",
      "title": "Senior Data Engineer",
      "description": "<p>Build pipelines with Python and Airflow.</p>",
      "datePosted": "2026-01-15",
      "employmentType": ["FULL_TIME"],
      "jobLocation": {"@type": "Place", "address": {"addressLocality": "Toronto", "addressRegion": "ON", "addressCountry": {"name": "CA"}}},
      "baseSalary": {"@type": "MonetaryAmount", "currency": "CAD", "value": {"@type": "QuantitativeValue", "minValue": 140000, "maxValue": 170000, "unitText": "YEAR"}},
      "qualifications": "<ul><li>5+ years of data engineering</li><li>Strong SQL</li></ul>",
      "url": "/jobs/data-engineer"
    },
    {
      "@type": ["JobPosting"],
      "title": "Support Specialist",
      "jobLocationType": "TELECOMMUTE",
      "applicantLocationRequirements": {"@type": "Country", "name": "USA"},
      "employmentType": "PART_TIME"
    }
  ]
}
</script>
</head><body></body></html>`

func TestExtractor_ParsesValidBlocksAndSkipsMalformed(t *testing.T) {
	company := &models.CompanyConfig{ID: "acme", Name: "Acme", CareerPageURL: "https://acme.example/careers"}
	jobs, err := New(staticPage(careersPage)).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	data := jobs[0]
	assert.Equal(t, "Senior Data Engineer", data.Title)
	assert.Equal(t, "Toronto, ON, CA", data.Location.Raw)
	assert.False(t, data.Location.IsRemote)
	assert.True(t, data.Salary.IsDisclosed)
	assert.Equal(t, 140000.0, data.Salary.Min)
	assert.Equal(t, "CAD", data.Salary.Currency)
	assert.Equal(t, "yearly", data.Salary.Period)
	assert.Equal(t, []string{"5+ years of data engineering", "Strong SQL"}, data.Requirements)
	assert.Equal(t, "https://acme.example/jobs/data-engineer", data.ExternalURL)
	assert.Equal(t, models.MethodStructuredData, data.Source.ScrapeMethod)
	assert.Equal(t, "senior", data.ExperienceLevel)

	support := jobs[1]
	assert.True(t, support.Location.IsRemote)
	assert.Equal(t, models.WorkTypeRemote, support.WorkType)
	assert.Equal(t, "Remote - USA", support.Location.Raw)
	assert.Equal(t, "part_time", support.EmploymentType)
	assert.False(t, support.Salary.IsDisclosed)
}

func TestExtractor_NoMarkupIsNoJobs(t *testing.T) {
	company := &models.CompanyConfig{ID: "x", Name: "X", CareerPageURL: "https://x.example"}
	_, err := New(staticPage("<html><body><h1>Careers</h1></body></html>")).Extract(context.Background(), company)
	require.Error(t, err)
	assert.Equal(t, utils.KindNoJobs, utils.KindOf(err))
}

func TestExtractor_SupportsNeedsCareerPage(t *testing.T) {
	e := New(staticPage(""))
	assert.False(t, e.Supports(&models.CompanyConfig{ID: "a", Name: "A"}))
	assert.True(t, e.Supports(&models.CompanyConfig{ID: "a", Name: "A", CareerPageURL: "https://a.example"}))
}
