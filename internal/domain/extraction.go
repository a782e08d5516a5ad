package domain

// ExtractedSpan is one sentence-level extraction result: the matched text,
// the section it was found in, and a confidence floored against the
// parser's structural confidence.
type ExtractedSpan struct {
	Text       string
	Confidence float64
	SectionID  string
}

// GranularPaperDetails is the extraction service's output: pattern-matched
// claims, methods, and limitations (each a bucket of ExtractedSpan), plus
// detected dataset and metric names, and optionally the document's
// reference list.
type GranularPaperDetails struct {
	DocumentID  string
	Claims      []ExtractedSpan
	Methods     []ExtractedSpan
	Limitations []ExtractedSpan
	Datasets    []string
	Metrics     []string
	References  []ParsedReference
}
