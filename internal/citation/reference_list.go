package citation

import (
	"context"
	"fmt"

	"github.com/scholarmcp/server/internal/domain"
)

// BuildListInput supplies either an explicit list of works or a manuscript
// to derive them from via an internal suggest call.
type BuildListInput struct {
	Works      []*domain.CanonicalWork
	Manuscript string
	Styles     []domain.Style
	Locale     string
}

// BuildListResult is buildList's output: the rendered bibliography text,
// per-style entries, and a structured export.
type BuildListResult struct {
	BibliographyText string
	Export           domain.StructuredExport
}

const referenceListSuggestK = 15
const referenceListRecencyBias = 0.6

// BuildList deduplicates the input works by DOI (falling back to the
// canonical key), formats each in every requested style, and assembles the
// full bibliography text plus a structured export.
func (e *Engine) BuildList(ctx context.Context, input BuildListInput) (*BuildListResult, error) {
	works := input.Works
	if len(works) == 0 && input.Manuscript != "" {
		result, err := e.Suggest(ctx, SuggestInput{
			ManuscriptText: input.Manuscript,
			K:              referenceListSuggestK,
			RecencyBias:    referenceListRecencyBias,
		})
		if err != nil {
			return nil, err
		}
		for _, s := range result.Suggestions {
			works = append(works, s.Work)
		}
	}

	deduped := dedupeWorks(works)
	styles := input.Styles
	if len(styles) == 0 {
		styles = []domain.Style{domain.StyleAPA}
	}

	export := domain.StructuredExport{}
	var bibliography string

	for i, w := range deduped {
		ref := referenceEntryFromWork(i, w)

		var entryLines []string
		var rendered []domain.CommonStyleEntry
		for _, style := range styles {
			formatted, structured, err := e.style.Format(style, input.Locale, ref)
			if err != nil {
				formatted, structured = fallbackFormat(ref)
			}
			entryLines = append(entryLines, formatted)
			rendered = append(rendered, structured.Rendered...)
		}
		export.Entries = append(export.Entries, domain.StructuredExportEntry{ReferenceIndex: i, Rendered: rendered})

		for _, line := range entryLines {
			bibliography += fmt.Sprintf("[%d] %s\n", i+1, line)
		}
	}

	return &BuildListResult{BibliographyText: bibliography, Export: export}, nil
}

func dedupeWorks(works []*domain.CanonicalWork) []*domain.CanonicalWork {
	seen := make(map[string]bool, len(works))
	var out []*domain.CanonicalWork
	for _, w := range works {
		if w == nil {
			continue
		}
		key := w.DOI
		if key == "" {
			key = w.Key
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
	}
	return out
}

func referenceEntryFromWork(index int, w *domain.CanonicalWork) domain.ReferenceEntry {
	authors := make([]string, 0, len(w.Authors))
	for _, a := range w.Authors {
		authors = append(authors, a.Name)
	}
	return domain.ReferenceEntry{
		Index:   index,
		RawText: w.Title,
		DOI:     w.DOI,
		Year:    w.Year,
		Authors: authors,
		Title:   w.Title,
	}
}

// InlineCitation renders the inline-suggestion heuristic for the top three
// works: bracketed ordinals for ieee/vancouver, semicolon-joined
// author-year for apa/chicago.
func InlineCitation(style domain.Style, refs []domain.ReferenceEntry) string {
	top := refs
	if len(top) > 3 {
		top = top[:3]
	}

	switch style {
	case domain.StyleIEEE, domain.StyleVancouver:
		var out string
		for i, r := range top {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprintf("[%d]", r.Index+1)
		}
		return out
	default:
		var out string
		for i, r := range top {
			if i > 0 {
				out += "; "
			}
			year := "n.d."
			if r.Year != nil {
				year = fmt.Sprintf("%d", *r.Year)
			}
			out += fmt.Sprintf("(%s, %s)", firstAuthorSurname(r.Authors), year)
		}
		return out
	}
}
