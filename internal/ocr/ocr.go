// Package ocr recovers text from PDFs the native parser cannot read, such as
// scanned papers and data sheets.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"
)

// Providers.
const (
	ProviderNone      = "none"
	ProviderPdfToText = "pdftotext"
	ProviderMistral   = "mistral"
)

// Extractor extracts text content from PDF bytes.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// Config selects an Extractor.
type Config struct {
	Provider      string
	PdfToTextPath string
	MistralKey    string
	MistralModel  string
}

// NewExtractor creates an Extractor based on cfg. The none provider returns
// a nil Extractor.
func NewExtractor(cfg Config) (Extractor, error) {
	switch cfg.Provider {
	case ProviderNone, "":
		return nil, nil
	case ProviderPdfToText:
		return NewPdfToText(cfg.PdfToTextPath), nil
	case ProviderMistral:
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
