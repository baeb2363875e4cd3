// Package regulatory is an in-memory lookup of EU AI Act articles and
// the compliance-vector evaluation the Jurist runs each anomaly
// through. The article set is small enough to ship as a Go literal
// rather than an external data file.
package regulatory

import "strings"

// Article is one regulatory citation the Jurist can reference.
type Article struct {
	Section  string
	Title    string
	Text     string
	Keywords []string
}

var articles = []Article{
	{Section: "Article 5", Title: "Prohibited AI Practices",
		Text:     "Certain AI practices presenting unacceptable risk are prohibited outright.",
		Keywords: []string{"unacceptable risk", "prohibited"}},
	{Section: "Article 6", Title: "Classification Rules for High-Risk AI Systems",
		Text:     "Defines criteria for classifying an AI system as high-risk.",
		Keywords: []string{"classification", "high-risk"}},
	{Section: "Article 9", Title: "Risk Management System",
		Text:     "High-risk AI systems must operate a continuous risk management process.",
		Keywords: []string{"risk management"}},
	{Section: "Article 13", Title: "Transparency and Provision of Information to Deployers",
		Text:     "High-risk systems must be sufficiently transparent for deployers to interpret output.",
		Keywords: []string{"transparency"}},
	{Section: "Article 14", Title: "Human Oversight",
		Text:     "High-risk AI systems must be designed to allow effective human oversight.",
		Keywords: []string{"human oversight", "oversight"}},
	{Section: "Article 52", Title: "Transparency Obligations for Certain AI Systems",
		Text:     "Limited-risk systems carry specific transparency disclosure duties.",
		Keywords: []string{"transparency", "disclosure"}},
}

// Query returns every article whose section contains section, or whose
// title, text or keywords contain keyword (case-insensitive), or
// all articles when both are empty. Results are capped at 10 to bound
// downstream payload size.
func Query(section, keyword string) []Article {
	if section == "" && keyword == "" {
		return capped(articles)
	}

	var out []Article
	for _, a := range articles {
		matched := false
		if section != "" && strings.Contains(strings.ToLower(a.Section), strings.ToLower(section)) {
			matched = true
		}
		if keyword != "" && matchesKeyword(a, keyword) {
			matched = true
		}
		if matched {
			out = append(out, a)
		}
	}
	return capped(out)
}

func matchesKeyword(a Article, keyword string) bool {
	needle := strings.ToLower(keyword)
	haystack := strings.ToLower(a.Title + " " + a.Text + " " + strings.Join(a.Keywords, " "))
	return strings.Contains(haystack, needle)
}

func capped(in []Article) []Article {
	if len(in) > 10 {
		return in[:10]
	}
	return in
}

// ComplianceVector is the Jurist's per-anomaly verdict.
type ComplianceVector struct {
	Compliant              bool
	RiskClassification     string
	RequiresHumanOversight bool
	RequiresTransparency   bool
	RelevantArticles       []Article
	Reasoning              string
}

// riskArticles maps a risk level to the article sections it implicates.
var riskArticles = map[string][]string{
	"unacceptable": {"Article 5"},
	"high":         {"Article 6", "Article 9", "Article 13", "Article 14", "Article 52"},
	"limited":      {"Article 52"},
	"minimal":      {},
}

// CheckComplianceVector evaluates one action description against EU AI
// Act compliance vectors for the given risk level.
func CheckComplianceVector(actionDescription, riskLevel string) ComplianceVector {
	level := strings.ToLower(riskLevel)
	sections := riskArticles[level]

	var relevant []Article
	for _, a := range articles {
		for _, sec := range sections {
			if strings.EqualFold(a.Section, sec) {
				relevant = append(relevant, a)
				break
			}
		}
	}

	requiresOversight := level == "high" || level == "unacceptable"
	requiresTransparency := level == "high" || level == "limited"
	compliant := true
	var reasoning []string

	switch level {
	case "unacceptable":
		compliant = false
		reasoning = append(reasoning, "Action classified as unacceptable risk under Article 5 — prohibited.")
	case "high":
		reasoning = append(reasoning, "Action classified as high-risk AI system. "+
			"Must satisfy Articles 6, 9 (risk management), 13 (transparency), 14 (human oversight), and 52.")
		if strings.Contains(strings.ToLower(actionDescription), "autonomous") {
			reasoning = append(reasoning, "Autonomous decision-making detected — human oversight (Article 14) is mandatory before execution.")
		}
	case "limited":
		reasoning = append(reasoning, "Limited risk classification. Transparency obligations apply (Article 52).")
	default:
		reasoning = append(reasoning, "Minimal risk — no specific obligations under EU AI Act.")
	}

	return ComplianceVector{
		Compliant:              compliant,
		RiskClassification:     riskLevel,
		RequiresHumanOversight: requiresOversight,
		RequiresTransparency:   requiresTransparency,
		RelevantArticles:       relevant,
		Reasoning:              strings.Join(reasoning, " "),
	}
}
