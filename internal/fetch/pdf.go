package fetch

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// PDFText extracts the plain text of every readable page.
func PDFText(content []byte) (text string, err error) {
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		return "", eris.New("pdf: not a PDF document")
	}

	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", eris.Errorf("pdf: malformed document: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", eris.Wrap(err, "pdf: parse")
	}

	var b strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}

	text = strings.TrimSpace(b.String())
	if text == "" {
		return "", eris.New("pdf: no extractable text")
	}
	return text, nil
}
