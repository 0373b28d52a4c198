// Package feature maps raw flow records onto the fixed seven-feature schema
// the models were trained on. Three raw shapes are supported: tabular
// dataset rows (already feature-shaped), Suricata EVE JSON flow events, and
// Zeek conn.log entries (JSON per line).
package feature

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/netsift/flowtriage/internal/model"
)

// UnknownCategory is the fallback for an absent application protocol or
// connection state. The model vocabularies carry a matching bucket.
const UnknownCategory = "unknown"

// ColumnIndex maps a CSV header to the positions of the required feature
// columns. Extra columns are tolerated and ignored.
type ColumnIndex map[string]int

// IndexColumns locates the seven required feature columns in a CSV header.
// A missing column is a SchemaError naming every absent column, raised once
// per file rather than per row.
func IndexColumns(header []string) (ColumnIndex, error) {
	idx := make(ColumnIndex, len(model.FeatureNames))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range model.FeatureNames {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &model.SchemaError{Missing: missing}
	}
	return idx, nil
}

// FromCSVRow builds a FeatureVector from one dataset row using a previously
// validated column index. A row too short to cover the indexed columns is a
// SchemaError; an unparsable numeric field is an ExtractionError. No partial
// vector is ever returned.
func FromCSVRow(idx ColumnIndex, row []string) (model.FeatureVector, error) {
	var fv model.FeatureVector

	var short []string
	for _, name := range model.FeatureNames {
		if idx[name] >= len(row) {
			short = append(short, name)
		}
	}
	if len(short) > 0 {
		return fv, &model.SchemaError{Missing: short}
	}

	field := func(name string) string { return strings.TrimSpace(row[idx[name]]) }

	fv.Proto = field("proto")
	fv.State = field("state")
	if fv.Proto == "" {
		fv.Proto = UnknownCategory
	}
	if fv.State == "" {
		fv.State = UnknownCategory
	}

	var err error
	if fv.Spkts, err = parseCount(field("spkts")); err != nil {
		return model.FeatureVector{}, &model.ExtractionError{Reason: "spkts: " + err.Error()}
	}
	if fv.Dpkts, err = parseCount(field("dpkts")); err != nil {
		return model.FeatureVector{}, &model.ExtractionError{Reason: "dpkts: " + err.Error()}
	}
	if fv.Sbytes, err = parseCount(field("sbytes")); err != nil {
		return model.FeatureVector{}, &model.ExtractionError{Reason: "sbytes: " + err.Error()}
	}
	if fv.Dbytes, err = parseCount(field("dbytes")); err != nil {
		return model.FeatureVector{}, &model.ExtractionError{Reason: "dbytes: " + err.Error()}
	}
	if fv.Dur, err = strconv.ParseFloat(field("dur"), 64); err != nil {
		return model.FeatureVector{}, &model.ExtractionError{Reason: "dur: " + err.Error()}
	}

	return fv, nil
}

func parseCount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some datasets serialize counts as floats ("12.0").
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, err
		}
		n = int64(f)
	}
	return n, nil
}

// eveRecord is the subset of a Suricata EVE event the extractor consumes.
type eveRecord struct {
	EventType string        `json:"event_type"`
	Proto     string        `json:"proto"`
	AppProto  string        `json:"app_proto"`
	Flow      *eveFlowStats `json:"flow"`
}

type eveFlowStats struct {
	PktsToServer  int64   `json:"pkts_toserver"`
	PktsToClient  int64   `json:"pkts_toclient"`
	BytesToServer int64   `json:"bytes_toserver"`
	BytesToClient int64   `json:"bytes_toclient"`
	Duration      float64 `json:"duration"`
	State         string  `json:"state"`
}

// FromEVELine parses one EVE JSON line. Events whose type is not "flow" are
// out of scope, not errors: the result is (nil, nil) and the caller skips
// them silently. Malformed JSON is an ExtractionError.
//
// Defaulting policy: a flow event with no statistics sub-object is a
// zero-activity flow, not an error — packet, byte, and duration fields all
// default to zero. Proto falls back to "unknown"; state falls back to the
// application protocol, then to "unknown".
func FromEVELine(line []byte) (*model.FeatureVector, error) {
	if len(strings.TrimSpace(string(line))) == 0 {
		return nil, nil
	}

	var rec eveRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, &model.ExtractionError{Reason: "invalid JSON: " + err.Error()}
	}
	if rec.EventType != "flow" {
		return nil, nil
	}

	fv := model.FeatureVector{
		Proto: strings.ToLower(rec.Proto),
		State: UnknownCategory,
	}
	if fv.Proto == "" {
		fv.Proto = UnknownCategory
	}

	if rec.Flow != nil {
		fv.Spkts = rec.Flow.PktsToServer
		fv.Dpkts = rec.Flow.PktsToClient
		fv.Sbytes = rec.Flow.BytesToServer
		fv.Dbytes = rec.Flow.BytesToClient
		fv.Dur = rec.Flow.Duration
		if rec.Flow.State != "" {
			fv.State = strings.ToLower(rec.Flow.State)
		}
	}
	if fv.State == UnknownCategory && rec.AppProto != "" {
		fv.State = strings.ToLower(rec.AppProto)
	}

	return &fv, nil
}

// zeekConn is the subset of a Zeek conn.log entry the extractor consumes.
// Zeek omits counters it never observed, so every numeric field defaults to
// zero, same as the EVE zero-activity policy.
type zeekConn struct {
	Proto     string  `json:"proto"`
	Service   string  `json:"service"`
	OrigPkts  int64   `json:"orig_pkts"`
	RespPkts  int64   `json:"resp_pkts"`
	OrigBytes int64   `json:"orig_bytes"`
	RespBytes int64   `json:"resp_bytes"`
	Duration  float64 `json:"duration"`
}

// FromZeekLine parses one JSON conn.log line. Unlike EVE logs there is no
// event-type filter: every entry is a connection. Blank lines yield
// (nil, nil); malformed JSON is an ExtractionError. The service field stands
// in for connection state, falling back to "unknown" when Zeek could not
// identify one.
func FromZeekLine(line []byte) (*model.FeatureVector, error) {
	if len(strings.TrimSpace(string(line))) == 0 {
		return nil, nil
	}

	var rec zeekConn
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, &model.ExtractionError{Reason: "invalid JSON: " + err.Error()}
	}

	fv := model.FeatureVector{
		Proto:  strings.ToLower(rec.Proto),
		State:  strings.ToLower(rec.Service),
		Spkts:  rec.OrigPkts,
		Dpkts:  rec.RespPkts,
		Sbytes: rec.OrigBytes,
		Dbytes: rec.RespBytes,
		Dur:    rec.Duration,
	}
	if fv.Proto == "" {
		fv.Proto = UnknownCategory
	}
	if fv.State == "" {
		fv.State = UnknownCategory
	}

	return &fv, nil
}
