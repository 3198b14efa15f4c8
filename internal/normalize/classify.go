package normalize

import (
	"regexp"
	"strings"

	"harvest-engine/pkg/models"
)

// Employment types
const (
	EmploymentFullTime   = "full_time"
	EmploymentPartTime   = "part_time"
	EmploymentContract   = "contract"
	EmploymentInternship = "internship"
	EmploymentTemporary  = "temporary"
)

// Experience levels
const (
	LevelIntern    = "intern"
	LevelEntry     = "entry"
	LevelJunior    = "junior"
	LevelMid       = "mid"
	LevelSenior    = "senior"
	LevelLead      = "lead"
	LevelExecutive = "executive"
)

// InferWorkType picks remote/hybrid/onsite from an explicit hint or from free text
func InferWorkType(hint, location, title, description string) string {
	switch h := strings.ToLower(strings.ReplaceAll(hint, "-", "")); {
	case strings.Contains(h, "remote") || h == "telecommute":
		return models.WorkTypeRemote
	case strings.Contains(h, "hybrid"):
		return models.WorkTypeHybrid
	case strings.Contains(h, "onsite") || strings.Contains(h, "office"):
		return models.WorkTypeOnsite
	}

	head := strings.ToLower(location + " " + title)
	switch {
	case strings.Contains(head, "hybrid"):
		return models.WorkTypeHybrid
	case IsRemoteLocation(head):
		return models.WorkTypeRemote
	}

	desc := strings.ToLower(description)
	switch {
	case containsAny(desc, "hybrid role", "hybrid position", "hybrid work", "days in office", "days in the office"):
		return models.WorkTypeHybrid
	case containsAny(desc, "fully remote", "100% remote", "remote-first", "remote first", "work from anywhere"):
		return models.WorkTypeRemote
	}
	return models.WorkTypeOnsite
}

// InferEmploymentType maps vendor vocabularies (FULL_TIME, Full-time, Contractor...) onto ours
func InferEmploymentType(texts ...string) string {
	blob := strings.ToLower(strings.Join(texts, " "))
	blob = strings.NewReplacer("_", " ", "-", " ").Replace(blob)
	switch {
	case containsAny(blob, "intern"):
		return EmploymentInternship
	case containsAny(blob, "part time", "parttime"):
		return EmploymentPartTime
	case containsAny(blob, "contract", "freelance", "contractor"):
		return EmploymentContract
	case containsAny(blob, "temporary", "temp ", "seasonal"):
		return EmploymentTemporary
	default:
		return EmploymentFullTime
	}
}

var levelPatterns = []struct {
	level string
	re    *regexp.Regexp
}{
	{LevelIntern, regexp.MustCompile(`\b(intern|internship|co-?op)\b`)},
	{LevelExecutive, regexp.MustCompile(`\b(director|head of|vp|vice president|chief|cto|ceo|cfo)\b`)},
	{LevelLead, regexp.MustCompile(`\b(lead|principal|staff|architect)\b`)},
	{LevelSenior, regexp.MustCompile(`\b(senior|sr|snr)\b`)},
	{LevelJunior, regexp.MustCompile(`\b(junior|jr|associate)\b`)},
	{LevelEntry, regexp.MustCompile(`\b(entry|graduate|new grad|trainee|apprentice)\b`)},
}

// InferExperienceLevel reads seniority from the title first, then an explicit hint
func InferExperienceLevel(title, hint string) string {
	for _, text := range []string{title, hint} {
		lower := strings.ToLower(text)
		for _, p := range levelPatterns {
			if p.re.MatchString(lower) {
				return p.level
			}
		}
	}
	return LevelMid
}

var knownSkills = []string{
	"JavaScript", "TypeScript", "Python", "Java", "Go", "Rust", "Ruby", "PHP", "Scala", "Kotlin", "Swift",
	"C++", "C#", "React", "Angular", "Vue", "Node.js", "Django", "Rails", "Spring", "GraphQL", "REST",
	"Docker", "Kubernetes", "Terraform", "AWS", "Azure", "GCP", "Linux", "Git", "CI/CD", "Jenkins",
	"PostgreSQL", "MySQL", "MongoDB", "Redis", "Kafka", "Elasticsearch", "Spark", "Airflow", "SQL",
	"NoSQL", "HTML", "CSS", "Microservices", "Machine Learning", "PyTorch", "TensorFlow", "Figma",
}

var skillAliases = map[string]string{"golang": "Go", "k8s": "Kubernetes", "postgres": "PostgreSQL", "nodejs": "Node.js"}

type skillMatcher struct {
	name string
	re   *regexp.Regexp
}

var skillMatchers = buildSkillMatchers()

func buildSkillMatchers() []skillMatcher {
	matchers := make([]skillMatcher, 0, len(knownSkills)+len(skillAliases))
	bound := func(term string, caseSensitive bool) *regexp.Regexp {
		flags := "(?i)"
		if caseSensitive {
			flags = ""
		}
		return regexp.MustCompile(flags + `(?:^|[^A-Za-z0-9+#.])` + regexp.QuoteMeta(term) + `(?:$|[^A-Za-z0-9+#])`)
	}
	for _, s := range knownSkills {
		// two-letter names like Go collide with ordinary words unless case matches
		matchers = append(matchers, skillMatcher{name: s, re: bound(s, len(s) <= 2)})
	}
	for alias, name := range skillAliases {
		matchers = append(matchers, skillMatcher{name: name, re: bound(alias, false)})
	}
	return matchers
}

// ExtractSkills finds known technology names in free text
func ExtractSkills(texts ...string) []string {
	blob := strings.Join(texts, " ")
	var found []string
	for _, m := range skillMatchers {
		if m.re.MatchString(blob) {
			found = append(found, m.name)
		}
	}
	return DedupeStrings(found)
}
