package domain

// Style names a citation formatting convention.
type Style string

const (
	StyleAPA      Style = "apa"
	StyleIEEE     Style = "ieee"
	StyleChicago  Style = "chicago"
	StyleVancouver Style = "vancouver"
)

// ReferenceEntry is one bibliography entry as seen by the citation engine,
// carrying both the raw parsed reference and its resolved position.
type ReferenceEntry struct {
	Index   int
	RawText string
	DOI     string
	Year    *int
	Authors []string
	Title   string
}

// CitationCandidate is one span in a manuscript's body text that the
// citation engine believes refers to a ReferenceEntry, with a confidence
// score derived from context-window token overlap.
type CitationCandidate struct {
	ReferenceIndex int
	MatchedText    string
	ContextSnippet string
	Confidence     float64
}

// CommonStyleEntry is one formatted-reference result, keyed by the style
// it was rendered in.
type CommonStyleEntry struct {
	Style Style
	Text  string
}

// StructuredExport is the citation engine's structured-export payload: one
// formatted entry per reference per requested style, plus validation
// diagnostics about the manuscript's citation health.
type StructuredExport struct {
	Entries     []StructuredExportEntry
	Diagnostics ValidationDiagnostics
}

// StructuredExportEntry pairs one reference with its rendering in every
// requested style.
type StructuredExportEntry struct {
	ReferenceIndex int
	Rendered       []CommonStyleEntry
}

// ValidationDiagnostics summarizes a manuscript's citation-reference
// consistency, as produced by the citation engine's validate operation.
type ValidationDiagnostics struct {
	MissingReferences       []int    // cited in text, absent from bibliography
	UncitedReferences       []int    // present in bibliography, never cited
	DuplicateReferences     [][]int  // groups of bibliography indices that look identical
	CompletenessDiagnostics []string
	StyleWarnings           []string
	InlineCitationCount     int // total inline citations found, numeric plus author-year
}
