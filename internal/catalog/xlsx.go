package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-updater/internal/dedup"
	"github.com/sells-group/catalog-updater/internal/model"
)

// Output file naming.
const (
	OutputPrefix     = "new_datasets_"
	OutputTimeLayout = "2006-01-02_15-04"
	categoryColumn   = "Category"
	defaultSheet     = "Sheet1"
)

// XLSXStore reads the catalog workbook and writes each run's accepted
// records to a new timestamped workbook.
type XLSXStore struct {
	path           string
	outputDir      string
	includeOutputs bool
	now            func() time.Time
}

// XLSXOption configures an XLSXStore.
type XLSXOption func(*XLSXStore)

// WithOutputs controls whether earlier run outputs join the snapshot.
func WithOutputs(include bool) XLSXOption {
	return func(s *XLSXStore) { s.includeOutputs = include }
}

// WithClock overrides the clock used to name output files.
func WithClock(now func() time.Time) XLSXOption {
	return func(s *XLSXStore) { s.now = now }
}

// NewXLSXStore creates an XLSXStore for the workbook at path writing into
// outputDir.
func NewXLSXStore(path, outputDir string, opts ...XLSXOption) *XLSXStore {
	if outputDir == "" {
		outputDir = "."
	}
	s := &XLSXStore{
		path:           path,
		outputDir:      outputDir,
		includeOutputs: true,
		now:            time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoadIdentitySets implements Store. A missing catalog yields empty sets; an
// unreadable one yields ErrSnapshotUnavailable.
func (s *XLSXStore) LoadIdentitySets(ctx context.Context) (dedup.IdentitySets, error) {
	sets := dedup.NewIdentitySets()

	rows, err := s.catalogRows()
	if err != nil {
		return sets, err
	}
	for _, r := range rows {
		sets.Add(r[model.FieldDatasetName.Key()], r[model.FieldDOI.Key()], r[model.FieldURL.Key()])
	}

	if s.includeOutputs {
		for _, r := range s.outputRows(ctx) {
			sets.Add(r[model.FieldDatasetName.Key()], r[model.FieldDOI.Key()], r[model.FieldURL.Key()])
		}
	}

	zap.L().Info("catalog: snapshot loaded",
		zap.String("path", s.path),
		zap.Int("names", len(sets.Names)),
		zap.Int("dois", len(sets.DOIs)),
		zap.Int("urls", len(sets.URLs)),
	)
	return sets, nil
}

// Records implements Store.
func (s *XLSXStore) Records(ctx context.Context) ([]model.Record, error) {
	rows, err := s.catalogRows()
	if err != nil {
		return nil, err
	}
	if s.includeOutputs {
		rows = append(rows, s.outputRows(ctx)...)
	}

	out := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		rec := model.RecordFromStrings(r)
		rec.Category = r[strings.ToLower(categoryColumn)]
		out = append(out, rec)
	}
	return out, nil
}

// Persist implements Store.
func (s *XLSXStore) Persist(_ context.Context, runID string, records []model.Record) (PersistResult, error) {
	unique, dropped := dedup.SelfDedupe(records)
	res := PersistResult{SelfDuplicates: dropped}
	if len(unique) == 0 {
		zap.L().Info("catalog: no new datasets to save", zap.String("run_id", runID))
		return res, nil
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return res, eris.Wrap(err, "catalog: create output dir")
	}

	path := s.outputPath()
	if err := WriteRecords(path, unique); err != nil {
		return res, err
	}

	res.Location = path
	res.Written = len(unique)
	zap.L().Info("catalog: saved new datasets",
		zap.String("run_id", runID),
		zap.String("path", path),
		zap.Int("records", len(unique)),
		zap.Int("self_duplicates", dropped),
	)
	return res, nil
}

// outputPath names the output for the current minute, adding a counter when
// a file of that name already exists.
func (s *XLSXStore) outputPath() string {
	base := OutputPrefix + s.now().Format(OutputTimeLayout)
	path := filepath.Join(s.outputDir, base+".xlsx")
	for i := 2; fileExists(path); i++ {
		path = filepath.Join(s.outputDir, fmt.Sprintf("%s_%d.xlsx", base, i))
	}
	return path
}

func (s *XLSXStore) catalogRows() ([]map[string]string, error) {
	if s.path == "" {
		zap.L().Warn("catalog: no catalog path configured, starting from an empty snapshot")
		return nil, nil
	}
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("catalog: workbook not found, starting from an empty snapshot", zap.String("path", s.path))
		return nil, nil
	}

	rows, err := ReadRows(s.path)
	if err != nil {
		return nil, eris.Wrapf(ErrSnapshotUnavailable, "%s: %v", s.path, err)
	}
	return rows, nil
}

// outputRows reads earlier run outputs. Unreadable outputs are skipped.
func (s *XLSXStore) outputRows(ctx context.Context) []map[string]string {
	matches, err := filepath.Glob(filepath.Join(s.outputDir, OutputPrefix+"*.xlsx"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	abs, _ := filepath.Abs(s.path)
	var out []map[string]string
	for _, m := range matches {
		if ctx.Err() != nil {
			break
		}
		if a, _ := filepath.Abs(m); a == abs {
			continue
		}
		rows, err := ReadRows(m)
		if err != nil {
			zap.L().Warn("catalog: skipping unreadable output", zap.String("path", m), zap.Error(err))
			continue
		}
		out = append(out, rows...)
	}
	return out
}

// ReadRows reads every sheet of the workbook at path. The first row of each
// sheet is its header; headers are matched case-insensitively and rows are
// returned keyed by lower-cased header. Cell values are trimmed and blank
// cells are omitted.
func ReadRows(path string) ([]map[string]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	var out []map[string]string
	for _, sheet := range f.Sheets {
		if len(sheet.Rows) == 0 {
			continue
		}
		header := rowToStrings(sheet.Rows[0])
		for i := range header {
			header[i] = strings.ToLower(strings.TrimSpace(header[i]))
		}

		for _, row := range sheet.Rows[1:] {
			cells := rowToStrings(row)
			rec := make(map[string]string, len(header))
			for j, v := range cells {
				if j >= len(header) || header[j] == "" {
					continue
				}
				if v = strings.TrimSpace(v); v != "" {
					rec[header[j]] = v
				}
			}
			if len(rec) > 0 {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// WriteRecords writes records to a new workbook at path with the schema
// columns followed by Category.
func WriteRecords(path string, records []model.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(defaultSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, k := range model.FieldKeys() {
		header.AddCell().SetString(k)
	}
	header.AddCell().SetString(categoryColumn)

	for _, r := range records {
		row := sheet.AddRow()
		for _, v := range r.Values() {
			row.AddCell().SetString(v)
		}
		row.AddCell().SetString(r.Category)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
