// Package render turns notes into plain text for the terminal.
package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xhad/notesqa/internal/models"
)

// UntitledNote is shown for notes without a title.
const UntitledNote = "Untitled Note"

func Title(note models.Note) string {
	if t := strings.TrimSpace(note.Title); t != "" {
		return t
	}
	return UntitledNote
}

// Text returns the readable body of note. HTML documents are reduced to their
// text, one block element per line; anything else is returned as written.
func Text(note models.Note) string {
	if !isHTML(note) {
		return strings.TrimSpace(note.Content)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(note.Content))
	if err != nil {
		return strings.TrimSpace(note.Content)
	}
	return extractMainContent(doc)
}

// Excerpt returns the first max runes of text on a single line.
func Excerpt(text string, max int) string {
	text = cleanContent(text)
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}

func isHTML(note models.Note) bool {
	switch strings.ToLower(note.DocumentType) {
	case "html", "text/html":
		return true
	}
	trimmed := strings.TrimSpace(note.Content)
	return strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">")
}

func extractMainContent(doc *goquery.Document) string {
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		"body",
	}

	root := doc.Selection
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			root = selected.First()
			break
		}
	}
	root.Find("script, style, nav").Remove()

	var lines []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are emitted by their innermost match.
		if s.Find("p, li, pre").Length() > 0 {
			return
		}
		text := s.Text()
		if goquery.NodeName(s) != "pre" {
			text = cleanContent(text)
		}
		if text == "" {
			return
		}
		if goquery.NodeName(s) == "li" {
			text = "• " + text
		}
		lines = append(lines, text)
	})

	if len(lines) == 0 {
		return cleanContent(root.Text())
	}
	return strings.Join(lines, "\n")
}

func cleanContent(content string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(content), " "))
}
