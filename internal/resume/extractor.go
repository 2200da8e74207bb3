package resume

import (
	"bytes"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// Supported reports whether an attachment filename qualifies as a resume
// document. Everything else is silently skipped.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".doc", ".docx":
		return true
	}
	return false
}

// Extractor converts a resume document to plain text. Implementations must
// return "" on failure rather than an error: a corrupt attachment degrades
// the score to zero signal, it never aborts a fetch cycle.
type Extractor interface {
	Extract(data []byte, filename string) string
}

// DocumentExtractor is the default extractor. DOCX is unpacked in-process;
// PDF and legacy DOC shell out to poppler's pdftotext and antiword.
type DocumentExtractor struct{}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

var _ Extractor = (*DocumentExtractor)(nil)

func (e *DocumentExtractor) Extract(data []byte, filename string) string {
	var text string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractWithTool(data, "*.pdf", "pdftotext", "-layout")
	case ".doc":
		text, err = extractWithTool(data, "*.doc", "antiword")
	case ".docx":
		text, err = extractDocx(data)
	default:
		return ""
	}
	if err != nil {
		log.Printf("Resume extraction failed for %s: %v", filename, err)
		return ""
	}
	return cleanText(text)
}

// extractWithTool writes the document to a temp file and runs a converter
// over it, reading text from stdout.
func extractWithTool(data []byte, pattern, tool string, args ...string) (string, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	tmp.Close()

	args = append(args, tmp.Name())
	if tool == "pdftotext" {
		args = append(args, "-") // text to stdout
	}
	out, err := exec.Command(tool, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer doc.Close()
	content := doc.Editable().GetContent()
	// GetContent returns the document XML; the markup is noise here.
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	return xmlTagPattern.ReplaceAllString(content, " "), nil
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// cleanText collapses whitespace and drops non-ASCII bytes so the text is
// safe to embed in a scoring prompt.
func cleanText(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r < 128 {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(sb.String(), " "))
}
