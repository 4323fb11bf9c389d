package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/modfin/vetter/internal/textutil"
)

// Criteria drives the simple criteria check. A MaxLength of zero or less
// disables the upper bound.
type Criteria struct {
	MinLength          int      `yaml:"min_length"`
	MaxLength          int      `yaml:"max_length"`
	RequiredElements   []string `yaml:"required_elements"`
	ProhibitedElements []string `yaml:"prohibited_elements"`
	MinCitations       int      `yaml:"min_citations"`

	// CitationPatterns replaces the built in citation patterns when set.
	CitationPatterns []string `yaml:"citation_patterns"`
}

func DefaultCriteria() Criteria {
	return Criteria{
		MinLength:    50,
		MaxLength:    4000,
		MinCitations: 0,
	}
}

type CriteriaResult struct {
	IsValid bool     `json:"is_valid"`
	Reasons []string `json:"reasons"`
}

var (
	numericCitation    = regexp.MustCompile(`\[\d+\]`)
	authorYearCitation = regexp.MustCompile(`\([A-Z][A-Za-z.&' -]*,\s*\d{4}[a-z]?\)`)
	footnoteMarker     = regexp.MustCompile(`\[\^\w+\]|[¹²³⁴⁵⁶⁷⁸⁹⁰]+`)
)

// CountCitations sums the matches of every pattern. With no patterns the
// bracketed numeric, author-year and footnote patterns are used.
func CountCitations(content string, patterns ...string) (int, error) {
	regexps := []*regexp.Regexp{numericCitation, authorYearCitation, footnoteMarker}
	if len(patterns) > 0 {
		regexps = regexps[:0:0]
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return 0, fmt.Errorf("invalid citation pattern %q: %w", p, err)
			}
			regexps = append(regexps, re)
		}
	}

	var count int
	for _, re := range regexps {
		count += len(re.FindAllStringIndex(content, -1))
	}
	return count, nil
}

// CheckCriteria runs the simple length, element and citation checks. Every
// failed check adds a reason and no error ever escapes.
func CheckCriteria(content, query string, c Criteria) CriteriaResult {
	var reasons []string

	length := textutil.Length(content)
	if length < c.MinLength {
		reasons = append(reasons, fmt.Sprintf("Content is too short (%d < %d characters)", length, c.MinLength))
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		reasons = append(reasons, fmt.Sprintf("Content is too long (%d > %d characters)", length, c.MaxLength))
	}

	for _, el := range c.RequiredElements {
		if !strings.Contains(content, el) {
			reasons = append(reasons, fmt.Sprintf("Missing required element: %s", el))
		}
	}
	for _, el := range c.ProhibitedElements {
		if strings.Contains(content, el) {
			reasons = append(reasons, fmt.Sprintf("Contains prohibited element: %s", el))
		}
	}

	if c.MinCitations > 0 {
		count, err := countCitationsSafe(content, c.CitationPatterns)
		if err != nil {
			return CriteriaResult{
				IsValid: false,
				Reasons: []string{fmt.Sprintf("Error during validation: %s", err.Error())},
			}
		}
		if count < c.MinCitations {
			reasons = append(reasons, fmt.Sprintf("Insufficient citations (found %d, required %d)", count, c.MinCitations))
		}
	}

	return CriteriaResult{
		IsValid: len(reasons) == 0,
		Reasons: reasons,
	}
}

func countCitationsSafe(content string, patterns []string) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return CountCitations(content, patterns...)
}
