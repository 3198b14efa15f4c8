package embedded

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

var company = &models.CompanyConfig{ID: "acme", Name: "Acme", CareerPageURL: "https://acme.example/careers"}

func TestExtract_NextData(t *testing.T) {
	page := `<html><body><div id="__next"></div>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{
  "nav":[{"name":"About","href":"/about"}],
  "jobs":[
    {"id":"1","title":"Platform Engineer","location":{"name":"Lisbon"},"department":"Infra","applyUrl":"/jobs/1","isRemote":false},
    {"id":"2","title":"Recruiter","locations":["Remote"],"employmentType":"Contract","applyUrl":"/jobs/2"}
  ]}}}
</script></body></html>`

	jobs, err := New(staticPage(page), 0).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "Platform Engineer", jobs[0].Title)
	assert.Equal(t, "Lisbon", jobs[0].Location.Raw)
	assert.Equal(t, "Infra", jobs[0].Department)
	assert.Equal(t, "https://acme.example/jobs/1", jobs[0].ExternalURL)
	assert.Equal(t, models.MethodEmbeddedState, jobs[0].Source.ScrapeMethod)

	assert.True(t, jobs[1].Location.IsRemote)
	assert.Equal(t, "contract", jobs[1].EmploymentType)
}

func TestExtract_WindowStateFallsThroughProbes(t *testing.T) {
	page := `<script>window.__INITIAL_STATE__ = {"careers":{"openings":[{"jobTitle":"Data Analyst","city":"Denver","postedDate":"2026-03-01"}]}};</script>`

	jobs, err := New(staticPage(page), 0).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Data Analyst", jobs[0].Title)
	assert.Equal(t, 3, int(jobs[0].PostedDate.Month()))
}

func TestExtract_IgnoresNonJobObjects(t *testing.T) {
	page := `<script id="__NEXT_DATA__" type="application/json">
{"props":{"team":[{"name":"Jane Doe","title":"CEO","photo":"/jane.png"}],"menu":[{"title":"Careers","href":"/careers"}]}}
</script>`

	_, err := New(staticPage(page), 0).Extract(context.Background(), company)
	assert.Equal(t, utils.KindNoJobs, utils.KindOf(err))
}

func TestFromState_RespectsDepthLimit(t *testing.T) {
	deep := map[string]interface{}{"title": "Deep Job", "jobId": "9"}
	var state interface{} = deep
	for i := 0; i < 5; i++ {
		state = map[string]interface{}{"child": state}
	}

	assert.Empty(t, New(nil, 3).FromState(state))
	assert.Len(t, New(nil, 10).FromState(state), 1)
}

func TestExtract_NuxtPayloadIsRevived(t *testing.T) {
	page := `<script type="application/json" id="__NUXT_DATA__" data-ssr="true">
[["ShallowReactive",1],{"data":2},["ShallowReactive",3],{"careers":4},{"jobs":5},[6,10],
{"title":7,"location":8,"applyUrl":9},"Platform Engineer","Lisbon","/jobs/1",
{"title":11,"location":12,"applyUrl":13,"postedDate":14},"Recruiter","Remote","/jobs/2",["Date","2026-03-01T00:00:00.000Z"]]
</script>`

	jobs, err := New(staticPage(page), 0).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Platform Engineer", jobs[0].Title)
	assert.Equal(t, "Lisbon", jobs[0].Location.Raw)
	assert.Equal(t, "https://acme.example/jobs/1", jobs[0].ExternalURL)
	assert.True(t, jobs[1].Location.IsRemote)
	assert.Equal(t, 3, int(jobs[1].PostedDate.Month()))
}

func TestExtract_NuxtWindowState(t *testing.T) {
	page := `<script>window.__NUXT__={"state":{"openings":[{"jobTitle":"QA Engineer","city":"Austin","jobId":"q1"}]}};</script>`

	jobs, err := New(staticPage(page), 0).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "QA Engineer", jobs[0].Title)
}

func TestReviveDevalue_BreaksCycles(t *testing.T) {
	payload := []interface{}{
		map[string]interface{}{"self": float64(0), "name": float64(1), "tags": float64(2)},
		"root",
		[]interface{}{float64(1), float64(99)},
	}

	root, ok := reviveDevalue(payload).(map[string]interface{})
	require.True(t, ok)
	assert.Nil(t, root["self"])
	assert.Equal(t, "root", root["name"])
	assert.Equal(t, []interface{}{"root", nil}, root["tags"])
}
