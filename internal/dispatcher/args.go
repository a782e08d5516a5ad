package dispatcher

import "encoding/json"

// searchLiteratureGraphArgs is search_literature_graph's argument schema.
type searchLiteratureGraphArgs struct {
	Query         string          `json:"query" validate:"required"`
	YearRange     json.RawMessage `json:"year_range"`
	FieldsOfStudy []string        `json:"fields_of_study"`
	Limit         int             `json:"limit" validate:"gte=1,lte=200"`
	Sources       []string        `json:"sources"`
}

// searchGoogleScholarKeyWordsArgs is search_google_scholar_key_words's schema.
type searchGoogleScholarKeyWordsArgs struct {
	Query      string `json:"query" validate:"required"`
	NumResults int    `json:"num_results" validate:"gte=1,lte=100"`
	Start      int    `json:"start" validate:"gte=0"`
	Language   string `json:"language" validate:"required"`
}

// searchGoogleScholarAdvancedArgs is search_google_scholar_advanced's schema.
type searchGoogleScholarAdvancedArgs struct {
	Query        string          `json:"query" validate:"required"`
	Author       string          `json:"author"`
	YearRange    json.RawMessage `json:"year_range"`
	ExactPhrase  string          `json:"exact_phrase"`
	ExcludeWords []string        `json:"exclude_words"`
	TitleOnly    bool            `json:"title_only"`
	NumResults   int             `json:"num_results" validate:"gte=1,lte=100"`
	Start        int             `json:"start" validate:"gte=0"`
	Language     string          `json:"language" validate:"required"`
}

// getAuthorInfoArgs is get_author_info's argument schema.
type getAuthorInfoArgs struct {
	AuthorName      string `json:"author_name" validate:"required"`
	MaxPublications int    `json:"max_publications" validate:"gte=1,lte=100"`
	Language        string `json:"language" validate:"required"`
}

// ingestPaperFulltextArgs is ingest_paper_fulltext's argument schema. At
// least one source field is required; enforced outside struct tags since
// validator's required_without_all needs exact field name matching.
type ingestPaperFulltextArgs struct {
	DOI          string `json:"doi"`
	PaperURL     string `json:"paper_url"`
	PDFURL       string `json:"pdf_url"`
	LocalPDFPath string `json:"local_pdf_path"`
	ParseMode    string `json:"parse_mode" validate:"oneof=auto structured simple"`
	OCREnabled   bool   `json:"ocr_enabled"`
}

// getIngestionStatusArgs is get_ingestion_status's argument schema.
type getIngestionStatusArgs struct {
	JobID string `json:"job_id" validate:"required"`
}

// extractGranularPaperDetailsArgs is extract_granular_paper_details's schema.
type extractGranularPaperDetailsArgs struct {
	DocumentID        string   `json:"document_id" validate:"required"`
	Sections          []string `json:"sections"`
	IncludeReferences *bool    `json:"include_references"`
}

// suggestContextualCitationsArgs is suggest_contextual_citations's schema.
type suggestContextualCitationsArgs struct {
	ManuscriptText string  `json:"manuscript_text" validate:"required"`
	CursorContext  string  `json:"cursor_context"`
	Style          string  `json:"style" validate:"oneof=apa ieee chicago vancouver"`
	K              int     `json:"k" validate:"gte=1,lte=100"`
	RecencyBias    float64 `json:"recency_bias" validate:"gte=0,lte=1"`
}

// buildReferenceListArgs is build_reference_list's argument schema. At
// least one of ManuscriptText or Works is required.
type buildReferenceListArgs struct {
	Style          string            `json:"style" validate:"oneof=apa ieee chicago vancouver"`
	Locale         string            `json:"locale"`
	ManuscriptText string            `json:"manuscript_text"`
	Works          []workReferenceIn `json:"works"`
}

// workReferenceIn is one caller-supplied canonical work reference for
// build_reference_list's optional `works` argument.
type workReferenceIn struct {
	DOI     string   `json:"doi"`
	Title   string   `json:"title" validate:"required"`
	Year    *int     `json:"year"`
	Authors []string `json:"authors"`
}

// validateManuscriptCitationsArgs is validate_manuscript_citations's schema.
type validateManuscriptCitationsArgs struct {
	ManuscriptText string               `json:"manuscript_text" validate:"required"`
	Style          string               `json:"style" validate:"omitempty,oneof=apa ieee chicago vancouver"`
	References     []referenceEntryIn   `json:"references" validate:"required,dive"`
}

// referenceEntryIn is one caller-supplied reference entry for
// validate_manuscript_citations, given as formatted text rather than
// structured fields.
type referenceEntryIn struct {
	ID        string `json:"id"`
	Formatted string `json:"formatted" validate:"required"`
	BibTeX    string `json:"bibtex"`
}
