// Package batch classifies a whole dataset or flow log and writes the
// labelled table plus a distribution summary.
package batch

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netsift/flowtriage/internal/archive"
	"github.com/netsift/flowtriage/internal/feature"
	"github.com/netsift/flowtriage/internal/model"
	"github.com/netsift/flowtriage/internal/report"
)

const (
	// DefaultWorkers bounds per-chunk classification parallelism.
	DefaultWorkers = 4

	// chunkSize is the number of rows classified in parallel before the
	// chunk is written out. Writing per chunk keeps output in input order
	// and leaves at most one chunk unflushed on interrupt.
	chunkSize = 256

	// maxLineSize bounds a single flow-log line.
	maxLineSize = 1024 * 1024
)

// Options configures one batch run. Exactly one of DataPath, EVEPath, and
// ZeekPath must be set.
type Options struct {
	DataPath string // CSV dataset with header-named feature columns
	EVEPath  string // Suricata EVE JSON log, one record per line
	ZeekPath string // Zeek conn.log, one JSON entry per line
	OutPath  string
	Limit    int // max records consumed; 0 = all
	Workers  int
	Archive  *archive.Store // optional classification archive
}

// Run classifies every record in the input and writes the labelled CSV.
// Rows failing extraction or inference are logged, excluded from output and
// tallied; they never abort the run. Output row order equals input row
// order. On context cancellation the rows classified so far are flushed and
// the partial summary is returned alongside the context error.
func Run(ctx context.Context, cls model.FlowClassifier, opts Options) (*report.Summary, error) {
	src, closeSrc, err := openSource(opts)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	out, err := os.Create(opts.OutPath)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	header := append(append([]string{}, model.FeatureNames...),
		"binary_label", "secondary_label", "final_label")
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing output header: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	summary := report.NewSummary()
	consumed := 0

	for {
		if err := ctx.Err(); err != nil {
			w.Flush()
			return summary, err
		}

		chunk, done, err := readChunk(src, opts.Limit, &consumed)
		if err != nil {
			w.Flush()
			return summary, err
		}
		if len(chunk) > 0 {
			if err := classifyChunk(ctx, cls, chunk, workers); err != nil {
				w.Flush()
				return summary, err
			}
			if err := writeChunk(w, chunk, summary, opts.Archive); err != nil {
				return summary, err
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return summary, fmt.Errorf("writing output: %w", err)
			}
		}
		if done {
			break
		}
	}

	return summary, nil
}

// row carries one record through extraction, classification, and output.
type row struct {
	fv     model.FeatureVector
	labels model.LabelTriple
	err    error // extraction or inference failure; row is skipped
}

func readChunk(src flowSource, limit int, consumed *int) ([]*row, bool, error) {
	chunk := make([]*row, 0, chunkSize)
	for len(chunk) < chunkSize {
		if limit > 0 && *consumed >= limit {
			return chunk, true, nil
		}
		fv, err := src.Next()
		if errors.Is(err, io.EOF) {
			return chunk, true, nil
		}
		*consumed++
		if err != nil && !isRecordError(err) {
			return chunk, false, err
		}
		chunk = append(chunk, &row{fv: fv, err: err})
	}
	return chunk, false, nil
}

func classifyChunk(ctx context.Context, cls model.FlowClassifier, chunk []*row, workers int) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, r := range chunk {
		if r.err != nil {
			continue
		}
		r := r
		g.Go(func() error {
			r.labels, r.err = cls.Classify(r.fv)
			return nil
		})
	}
	return g.Wait()
}

func writeChunk(w *csv.Writer, chunk []*row, summary *report.Summary, arch *archive.Store) error {
	var archived []archive.Record
	for _, r := range chunk {
		if r.err != nil {
			log.Printf("batch: skipping record: %v", r.err)
			summary.Skip()
			continue
		}
		if err := w.Write(formatRow(r)); err != nil {
			return fmt.Errorf("writing output row: %w", err)
		}
		summary.Add(r.labels.Final)
		if arch != nil {
			archived = append(archived, archive.Record{Ts: time.Now(), Flow: r.fv, Labels: r.labels})
		}
	}
	if arch != nil && len(archived) > 0 {
		if err := arch.InsertBatch(archived); err != nil {
			// Archival is best-effort; the CSV output is the contract.
			log.Printf("batch: archive insert failed: %v", err)
		}
	}
	return nil
}

func formatRow(r *row) []string {
	return []string{
		r.fv.Proto,
		r.fv.State,
		strconv.FormatInt(r.fv.Spkts, 10),
		strconv.FormatInt(r.fv.Dpkts, 10),
		strconv.FormatInt(r.fv.Sbytes, 10),
		strconv.FormatInt(r.fv.Dbytes, 10),
		strconv.FormatFloat(r.fv.Dur, 'g', -1, 64),
		r.labels.Binary,
		r.labels.Secondary, // empty for normal flows
		r.labels.Final,
	}
}

func isRecordError(err error) bool {
	var se *model.SchemaError
	var ee *model.ExtractionError
	var ie *model.InferenceError
	return errors.As(err, &se) || errors.As(err, &ee) || errors.As(err, &ie)
}

// flowSource streams feature vectors from a raw input. Next returns io.EOF
// at end of stream; a SchemaError or ExtractionError marks one skipped
// record and the stream continues.
type flowSource interface {
	Next() (model.FeatureVector, error)
}

func openSource(opts Options) (flowSource, func() error, error) {
	set := 0
	for _, p := range []string{opts.DataPath, opts.EVEPath, opts.ZeekPath} {
		if p != "" {
			set++
		}
	}
	if set > 1 {
		return nil, nil, fmt.Errorf("--data, --eve and --zeek are mutually exclusive")
	}

	switch {
	case opts.DataPath != "":
		f, err := os.Open(opts.DataPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening dataset: %w", err)
		}
		src, err := newCSVSource(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return src, f.Close, nil
	case opts.EVEPath != "":
		f, err := os.Open(opts.EVEPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening flow log: %w", err)
		}
		return newLineSource(f, feature.FromEVELine), f.Close, nil
	case opts.ZeekPath != "":
		f, err := os.Open(opts.ZeekPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening conn log: %w", err)
		}
		return newLineSource(f, feature.FromZeekLine), f.Close, nil
	default:
		return nil, nil, fmt.Errorf("no input: set --data, --eve or --zeek")
	}
}

type csvSource struct {
	r   *csv.Reader
	idx feature.ColumnIndex
}

// newCSVSource validates the header up front: a dataset missing a required
// feature column is a fatal load failure, not a per-row skip.
func newCSVSource(r io.Reader) (*csvSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading dataset header: %w", err)
	}
	idx, err := feature.IndexColumns(header)
	if err != nil {
		return nil, fmt.Errorf("dataset header: %w", err)
	}
	return &csvSource{r: cr, idx: idx}, nil
}

func (s *csvSource) Next() (model.FeatureVector, error) {
	rec, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.FeatureVector{}, io.EOF
		}
		return model.FeatureVector{}, &model.ExtractionError{Reason: err.Error()}
	}
	return feature.FromCSVRow(s.idx, rec)
}

// lineSource streams feature vectors out of a line-delimited JSON log (EVE
// or Zeek) through the given extractor.
type lineSource struct {
	scanner *bufio.Scanner
	extract func([]byte) (*model.FeatureVector, error)
}

func newLineSource(r io.Reader, extract func([]byte) (*model.FeatureVector, error)) *lineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, maxLineSize), maxLineSize)
	return &lineSource{scanner: sc, extract: extract}
}

// Next skips out-of-scope lines silently (non-flow EVE events, blanks); they
// are not errors and do not count against the limit or the skip tally.
func (s *lineSource) Next() (model.FeatureVector, error) {
	for s.scanner.Scan() {
		fv, err := s.extract(s.scanner.Bytes())
		if err != nil {
			return model.FeatureVector{}, err
		}
		if fv == nil {
			continue
		}
		return *fv, nil
	}
	if err := s.scanner.Err(); err != nil {
		return model.FeatureVector{}, err
	}
	return model.FeatureVector{}, io.EOF
}
