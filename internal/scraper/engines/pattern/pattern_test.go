package pattern

import (
	"context"
	"fmt"
	"strings"
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

func company(sel models.SelectorConfig) *models.CompanyConfig {
	return &models.CompanyConfig{
		ID: "acme", Name: "Acme", CareerPageURL: "https://acme.example/careers/",
		ScrapeConfig: models.ScrapeConfig{Selectors: sel},
	}
}

func TestExtract_CustomSelectors(t *testing.T) {
	page := `<ul>
<li class="opening-row"><span class="role">Site Reliability Engineer</span><em class="where">Dublin</em><a class="go" href="sre">Apply</a></li>
<li class="opening-row"><span class="role">Menu</span></li>
</ul>`

	sel := models.SelectorConfig{JobCard: "li.opening-row", Title: ".role", Location: ".where", Link: "a.go"}
	jobs, err := New(staticPage(page), 0).Extract(context.Background(), company(sel))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Site Reliability Engineer", jobs[0].Title)
	assert.Equal(t, "Dublin", jobs[0].Location.Raw)
	assert.Equal(t, "https://acme.example/careers/sre", jobs[0].ExternalURL)
	assert.Equal(t, models.MethodHTMLPattern, jobs[0].Source.ScrapeMethod)
}

func TestExtract_GenericCards(t *testing.T) {
	page := `<div class="job-card"><h3 class="job-title">Frontend Developer</h3><span class="job-location">Remote</span><a href="/jobs/fe">View</a></div>
<div class="job-card"><h3 class="job-title">Frontend Developer</h3><span class="job-location">Remote</span><a href="/jobs/fe">View</a></div>`

	jobs, err := New(staticPage(page), 0).Extract(context.Background(), company(models.SelectorConfig{}))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Location.IsRemote)
	assert.Equal(t, "https://acme.example/jobs/fe", jobs[0].ExternalURL)
}

func TestExtract_LinkSweepSkipsNavigation(t *testing.T) {
	page := `<nav><a href="/login">Login</a></nav>
<main>
<a href="/about">About us</a>
<a href="/p/1">Senior Product Manager</a>
<a href="/p/2">Apply now</a>
<a href="/p/3">Data Scientist, Growth</a>
</main>`

	jobs, err := New(staticPage(page), 0).Extract(context.Background(), company(models.SelectorConfig{}))
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Senior Product Manager", jobs[0].Title)
	assert.Equal(t, "Data Scientist, Growth", jobs[1].Title)
}

func TestExtract_CapsResults(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, `<a href="/r/%d">Software Engineer %d</a>`, i, i)
	}

	jobs, err := New(staticPage(b.String()), 20).Extract(context.Background(), company(models.SelectorConfig{}))
	require.NoError(t, err)
	assert.Len(t, jobs, 20)
}

func TestExtract_NoJobs(t *testing.T) {
	_, err := New(staticPage(`<p>We are not hiring right now.</p>`), 0).Extract(context.Background(), company(models.SelectorConfig{}))
	assert.Equal(t, utils.KindNoJobs, utils.KindOf(err))
}

func TestExtract_CardsWithNavigationTitlesAreDropped(t *testing.T) {
	page := `<ul>
<li class="job-card"><a href="/jobs/1">Apply</a></li>
<li class="job-card"><a href="/jobs/2">Apply here</a></li>
<li class="job-card"><a href="/jobs/3">Menu items</a></li>
<li class="job-card"><a href="/jobs/4">Platform Engineer</a></li>
</ul>`

	raws, err := New(staticPage(page), 0).ExtractFromHTML(page, "https://acme.example/", models.SelectorConfig{})
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "Platform Engineer", raws[0].Title)
	assert.Equal(t, "https://acme.example/jobs/4", raws[0].URL)
}

func TestPlausibleTitle(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Apply", false},
		{"apply here", false},
		{"Apply now", false},
		{"Login", false},
		{"Menu", false},
		{"Dev", false},
		{"Applied Scientist", true},
		{"Backend Engineer", true},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, PlausibleTitle(tt.title))
		})
	}
}
