package processors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanHTML_KeepsLinksAndStructure(t *testing.T) {
	html := `<html><head><title>Careers</title><script>track()</script></head><body>
<!-- hero -->
<div class="job-list" style="color:red" onclick="x()">
  <a href="/jobs/42" target="_blank">Backend Engineer</a>
  <span></span>
  <img src="logo.png">
</div></body></html>`

	cleaned, err := NewHTMLCleaner().CleanHTML(html)
	require.NoError(t, err)
	assert.Equal(t, `<div class="job-list"><a href="/jobs/42">Backend Engineer</a></div>`, cleaned)
}

func TestPrepare_Truncates(t *testing.T) {
	html := "<body><p>" + strings.Repeat("engineer ", 100) + "</p></body>"

	out, truncated, err := NewHTMLCleaner().Prepare(html, 50)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, out, 50)

	_, truncated, err = NewHTMLCleaner().Prepare(html, 0)
	require.NoError(t, err)
	assert.False(t, truncated)
}
