package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/catalog-updater/internal/catalog"
	"github.com/sells-group/catalog-updater/internal/model"
)

func TestFormatCatalogStats(t *testing.T) {
	stats := catalog.ComputeStats([]model.Record{
		model.NewRecord().With(model.FieldDatasetName, "ADNI").With(model.FieldDOI, "10.1/adni").WithCategory("Neurodegenerative"),
		model.NewRecord().With(model.FieldDatasetName, "BraTS").With(model.FieldURL, "https://brats.org").WithCategory("Neoplasm"),
	})

	var buf bytes.Buffer
	formatCatalogStats(&buf, stats)

	out := buf.String()
	assert.Contains(t, out, "Records:")
	assert.Contains(t, out, "Neurodegenerative")
	assert.Contains(t, out, "Neoplasm")
	assert.Contains(t, out, model.FieldDatasetName.Key())
	assert.Contains(t, out, model.FieldLabData.Key())
}
