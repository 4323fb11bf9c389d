package ai

import (
	"strings"

	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/vetter/internal/generate"
)

type structuredAnswer struct {
	Answer    string             `json:"answer" json-description:"The answer to the question"`
	Citations []structuredSource `json:"citations,omitempty" json-description:"The sources the answer is based on, if any"`
}

type structuredSource struct {
	Title  string `json:"title,omitempty" json-description:"Title of the source"`
	Source string `json:"source,omitempty" json-description:"URL or reference of the source"`
	Quote  string `json:"quote,omitempty" json-description:"A short quote from the source supporting the answer"`
}

func (s structuredSource) citation() generate.Citation {
	return generate.Citation{Title: s.Title, Source: s.Source, Quote: s.Quote}
}

// ParseModel splits "Provider/name", e.g. "OpenAI/gpt-4o-mini".
func ParseModel(model string) gen.Model {
	provider, name, _ := strings.Cut(model, "/")
	return gen.Model{
		Provider: provider,
		Name:     name,
	}
}
