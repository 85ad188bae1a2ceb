package fetch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/pkg/jina"
)

// JinaReader fetches pages through the Jina reader service. It renders
// JavaScript-heavy and challenge-protected pages the local reader cannot.
type JinaReader struct {
	client jina.Client
}

// NewJinaReader creates a JinaReader.
func NewJinaReader(client jina.Client) *JinaReader {
	return &JinaReader{client: client}
}

// Name implements Reader.
func (j *JinaReader) Name() string { return "jina" }

// Read implements Reader.
func (j *JinaReader) Read(ctx context.Context, rawURL string) (*model.FetchedPage, error) {
	resp, err := j.client.Read(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "jina reader")
	}
	if resp.Data.Content == "" {
		return nil, eris.Errorf("jina reader: empty content for %s", rawURL)
	}
	return &model.FetchedPage{
		URL:         rawURL,
		Title:       resp.Data.Title,
		Text:        resp.Data.Content,
		ContentType: "text/plain",
		Source:      j.Name(),
		FetchedAt:   time.Now().UTC(),
	}, nil
}
