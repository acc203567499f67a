package tidy

import (
	"fmt"
	"slices"
	"strings"
)

// Category is one of the fixed set of folders a file can be filed under.
type Category string

const (
	CategoryCode      Category = "code"
	CategoryImages    Category = "images"
	CategoryDocuments Category = "documents"
	CategoryMedia     Category = "media"
	CategoryArchives  Category = "archives"
	CategoryApps      Category = "apps"
	CategoryData      Category = "data"
	CategoryMisc      Category = "misc"
)

// Categories lists every category in extension-table order, misc last.
var Categories = []Category{
	CategoryCode,
	CategoryImages,
	CategoryDocuments,
	CategoryMedia,
	CategoryArchives,
	CategoryApps,
	CategoryData,
	CategoryMisc,
}

// PreviewSize is the maximum number of bytes read for a content preview.
const PreviewSize = 500

// previewExtensions are the text-like extensions whose content is inspected.
var previewExtensions = []string{".txt", ".md", ".py", ".js", ".html", ".css", ".json"}

var codeKeywords = []string{"import", "function", "class", "def ", "var ", "const "}

// filenameRule maps filename keywords to a category. Rules are tried in order.
type filenameRule struct {
	keywords []string
	category Category
	reason   string
}

var filenameRules = []filenameRule{
	{[]string{"resume", "cv", "report", "document", "letter"}, CategoryDocuments, "Detected document"},
	{[]string{"project", "assignment", "homework", "work"}, CategoryDocuments, "Detected work-related file"},
	{[]string{"screenshot", "screen shot", "capture"}, CategoryImages, "Detected screenshot"},
}

// extensionTable is consulted in order; the first category listing an
// extension wins, so ".txt" and ".json" resolve to code.
var extensionTable = []struct {
	category   Category
	extensions []string
}{
	{CategoryCode, []string{".py", ".js", ".html", ".css", ".json", ".md", ".txt"}},
	{CategoryImages, []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp"}},
	{CategoryDocuments, []string{".pdf", ".doc", ".docx", ".txt", ".rtf"}},
	{CategoryMedia, []string{".mp4", ".mov", ".avi", ".mkv", ".mp3", ".wav"}},
	{CategoryArchives, []string{".zip", ".rar", ".tar", ".gz", ".7z"}},
	{CategoryApps, []string{".dmg", ".pkg", ".app"}},
	{CategoryData, []string{".csv", ".xlsx", ".json", ".xml", ".sql"}},
}

// Candidate is the observable state of a file under scan.
type Candidate struct {
	Name    string // base name
	Ext     string // extension including the dot, any case
	Size    int64
	Preview []byte // leading bytes, only for preview extensions
}

// Classification is the result of classifying a Candidate.
type Classification struct {
	Category Category
	Reason   string
}

// Classifier maps a Candidate to exactly one Category. It is stateless,
// so the zero value is ready to use and safe for concurrent use.
type Classifier struct{}

// WantsPreview reports whether content for files with ext is inspected.
func (Classifier) WantsPreview(ext string) bool {
	return slices.Contains(previewExtensions, strings.ToLower(ext))
}

// Classify returns the category for c. Rules are applied in order, first
// match wins: content keywords, filename keywords, extension table, misc.
func (cl Classifier) Classify(c Candidate) Classification {
	filename := strings.ToLower(c.Name)
	ext := strings.ToLower(c.Ext)

	if cl.WantsPreview(ext) && len(c.Preview) > 0 {
		preview := c.Preview
		if len(preview) > PreviewSize {
			preview = preview[:PreviewSize]
		}
		text := strings.ToLower(strings.ToValidUTF8(string(preview), ""))
		if containsAny(text, codeKeywords) {
			return Classification{CategoryCode, fmt.Sprintf("Detected programming content in %s", filename)}
		}
	}

	for _, rule := range filenameRules {
		if containsAny(filename, rule.keywords) {
			return Classification{rule.category, fmt.Sprintf("%s: %s", rule.reason, filename)}
		}
	}

	for _, row := range extensionTable {
		if slices.Contains(row.extensions, ext) {
			return Classification{row.category, fmt.Sprintf("Categorized by extension: %s", filename)}
		}
	}

	return Classification{CategoryMisc, fmt.Sprintf("Uncategorized file: %s", filename)}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
