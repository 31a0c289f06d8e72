package mcpserver

import (
	"strings"

	"github.com/starford/brainreset/internal/reflection"
)

// ReflectionFormatURI is the resource carrying ReflectionFormat.
const ReflectionFormatURI = "brainreset://reflection-format"

// ReflectionFormat describes the document a brain reset writes to Craft, so
// LLM consumers know what the generate_brain_reset tool produces.
var ReflectionFormat = buildReflectionFormat()

func buildReflectionFormat() string {
	var b strings.Builder
	b.WriteString(`# Brain Reset Reflection Format

A brain reset reads the Craft daily notes of the last 7, 14 or 30 days and
writes one Markdown document to the most recent of those daily notes.

## Structure

The document starts with a level-one title naming the period and the
calendar week(s) it covers, e.g. "# Weekly Brain Reset (Week 43, 2026)",
followed by these sections in order:

`)
	for _, s := range reflection.Sections {
		b.WriteString("- `")
		b.WriteString(s)
		b.WriteString("`\n")
	}
	b.WriteString(`
## Rules

1. Sections use bullet points and stay concise.
2. Key themes and next actions list 3-5 items.
3. "The One Thing" is a single sentence.
4. Closure prompts are 2-3 short questions that close out the period.

## Periods

| days requested | period    |
|----------------|-----------|
| 1-13           | weekly    |
| 14-29          | bi-weekly |
| 30             | monthly   |

Requests for fewer than 7 days are widened to 7.
`)
	return b.String()
}
