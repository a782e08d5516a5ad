package citation

import (
	"fmt"
	"strings"

	"github.com/scholarmcp/server/internal/domain"
)

// StyleAdapter renders a reference entry in a requested citation style. It
// is the seam for swapping in a richer formatting library without changing
// the engine's suggest/build/validate logic.
type StyleAdapter interface {
	Format(style domain.Style, locale string, w domain.ReferenceEntry) (formatted string, structured domain.StructuredExportEntry, err error)
}

// plainAdapter is the built-in StyleAdapter, sufficient to exercise
// buildList and validate end to end.
type plainAdapter struct{}

// NewPlainAdapter returns the built-in StyleAdapter.
func NewPlainAdapter() StyleAdapter { return plainAdapter{} }

func (plainAdapter) Format(style domain.Style, locale string, ref domain.ReferenceEntry) (string, domain.StructuredExportEntry, error) {
	year := "n.d."
	if ref.Year != nil {
		year = fmt.Sprintf("%d", *ref.Year)
	}
	author := firstAuthorSurname(ref.Authors)
	if author == "" {
		author = "Unknown"
	}
	title := ref.Title
	if title == "" {
		title = ref.RawText
	}

	var formatted string
	switch style {
	case domain.StyleAPA:
		formatted = fmt.Sprintf("%s (%s). %s.", authorList(ref.Authors, "apa"), year, title)
	case domain.StyleChicago:
		formatted = fmt.Sprintf("%s. %s. %s.", authorList(ref.Authors, "chicago"), title, year)
	case domain.StyleIEEE:
		formatted = fmt.Sprintf("%s, \"%s,\" %s.", authorList(ref.Authors, "ieee"), title, year)
	case domain.StyleVancouver:
		formatted = fmt.Sprintf("%s. %s. %s.", authorList(ref.Authors, "vancouver"), title, year)
	default:
		formatted = fmt.Sprintf("%s (%s). %s.", author, year, title)
	}
	if ref.DOI != "" {
		formatted += fmt.Sprintf(" https://doi.org/%s", ref.DOI)
	}

	structured := domain.StructuredExportEntry{
		ReferenceIndex: ref.Index,
		Rendered:       []domain.CommonStyleEntry{{Style: style, Text: formatted}},
	}
	return formatted, structured, nil
}

func firstAuthorSurname(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	return surname(authors[0])
}

func surname(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if idx := strings.Index(name, ","); idx >= 0 {
		return strings.TrimSpace(name[:idx])
	}
	parts := strings.Fields(name)
	return parts[len(parts)-1]
}

func authorList(authors []string, style string) string {
	if len(authors) == 0 {
		return "Unknown"
	}
	surnames := make([]string, 0, len(authors))
	for _, a := range authors {
		surnames = append(surnames, surname(a))
	}
	switch style {
	case "ieee", "vancouver":
		return strings.Join(surnames, ", ")
	default:
		if len(surnames) == 1 {
			return surnames[0]
		}
		return strings.Join(surnames[:len(surnames)-1], ", ") + " & " + surnames[len(surnames)-1]
	}
}

// fallbackFormat builds the textual fallback used when a style adapter
// fails on an entry: "{firstAuthor} ({year|"n.d."}). {title}."
func fallbackFormat(ref domain.ReferenceEntry) (string, domain.StructuredExportEntry) {
	author := firstAuthorSurname(ref.Authors)
	if author == "" {
		author = "Unknown"
	}
	year := "n.d."
	if ref.Year != nil {
		year = fmt.Sprintf("%d", *ref.Year)
	}
	title := ref.Title
	if title == "" {
		title = ref.RawText
	}
	text := fmt.Sprintf("%s (%s). %s.", author, year, title)
	return text, domain.StructuredExportEntry{
		ReferenceIndex: ref.Index,
		Rendered:       []domain.CommonStyleEntry{{Style: "", Text: text}},
	}
}
