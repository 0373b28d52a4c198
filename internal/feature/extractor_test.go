package feature

import (
	"errors"
	"testing"

	"github.com/netsift/flowtriage/internal/model"
)

func TestIndexColumns_AllPresent(t *testing.T) {
	t.Parallel()
	header := []string{"id", "proto", "service", "state", "spkts", "dpkts", "sbytes", "dbytes", "dur", "label"}
	idx, err := IndexColumns(header)
	if err != nil {
		t.Fatalf("IndexColumns: %v", err)
	}
	if idx["proto"] != 1 || idx["dur"] != 8 {
		t.Errorf("unexpected column positions: proto=%d dur=%d", idx["proto"], idx["dur"])
	}
}

func TestIndexColumns_MissingColumns(t *testing.T) {
	t.Parallel()
	header := []string{"proto", "spkts", "dpkts", "sbytes", "dbytes"}
	_, err := IndexColumns(header)
	var se *model.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if len(se.Missing) != 2 {
		t.Errorf("missing = %v, want [state dur]", se.Missing)
	}
}

func TestFromCSVRow_Complete(t *testing.T) {
	t.Parallel()
	idx, err := IndexColumns([]string{"dur", "proto", "service", "state", "spkts", "dpkts", "sbytes", "dbytes"})
	if err != nil {
		t.Fatalf("IndexColumns: %v", err)
	}
	row := []string{"0.15", "tcp", "http", "FIN", "12", "9", "8500", "900"}
	fv, err := FromCSVRow(idx, row)
	if err != nil {
		t.Fatalf("FromCSVRow: %v", err)
	}
	want := model.FeatureVector{Proto: "tcp", State: "FIN", Spkts: 12, Dpkts: 9, Sbytes: 8500, Dbytes: 900, Dur: 0.15}
	if fv != want {
		t.Errorf("fv = %+v, want %+v", fv, want)
	}
}

func TestFromCSVRow_FloatCounts(t *testing.T) {
	t.Parallel()
	idx, _ := IndexColumns(model.FeatureNames)
	row := []string{"tcp", "EST", "12.0", "9.0", "8500.0", "900.0", "0.5"}
	fv, err := FromCSVRow(idx, row)
	if err != nil {
		t.Fatalf("FromCSVRow: %v", err)
	}
	if fv.Spkts != 12 || fv.Dbytes != 900 {
		t.Errorf("counts = %d/%d, want 12/900", fv.Spkts, fv.Dbytes)
	}
}

func TestFromCSVRow_ShortRow(t *testing.T) {
	t.Parallel()
	idx, _ := IndexColumns(model.FeatureNames)
	_, err := FromCSVRow(idx, []string{"tcp", "EST", "1"})
	var se *model.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
}

func TestFromCSVRow_BadNumeric(t *testing.T) {
	t.Parallel()
	idx, _ := IndexColumns(model.FeatureNames)
	_, err := FromCSVRow(idx, []string{"tcp", "EST", "twelve", "9", "8500", "900", "0.15"})
	var ee *model.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
}

func TestFromEVELine_FlowEvent(t *testing.T) {
	t.Parallel()
	line := `{"event_type":"flow","proto":"TCP","app_proto":"http","flow":{"pkts_toserver":12,"pkts_toclient":9,"bytes_toserver":8500,"bytes_toclient":900,"duration":0.15,"state":"established"}}`
	fv, err := FromEVELine([]byte(line))
	if err != nil {
		t.Fatalf("FromEVELine: %v", err)
	}
	if fv == nil {
		t.Fatal("flow event should not be skipped")
	}
	want := model.FeatureVector{Proto: "tcp", State: "established", Spkts: 12, Dpkts: 9, Sbytes: 8500, Dbytes: 900, Dur: 0.15}
	if *fv != want {
		t.Errorf("fv = %+v, want %+v", *fv, want)
	}
}

func TestFromEVELine_NonFlowEventsSkipped(t *testing.T) {
	t.Parallel()
	for _, line := range []string{
		`{"event_type":"alert","alert":{"signature":"x"}}`,
		`{"event_type":"dns","dns":{"type":"query"}}`,
		`{"event_type":"stats"}`,
	} {
		fv, err := FromEVELine([]byte(line))
		if err != nil {
			t.Errorf("line %q: unexpected error %v", line, err)
		}
		if fv != nil {
			t.Errorf("line %q: non-flow event should yield nil", line)
		}
	}
}

// A flow event with no statistics sub-object is a zero-activity flow, not an
// error. Every numeric field defaults to zero.
func TestFromEVELine_MissingStatsDefaultsToZero(t *testing.T) {
	t.Parallel()
	fv, err := FromEVELine([]byte(`{"event_type":"flow","proto":"udp"}`))
	if err != nil {
		t.Fatalf("FromEVELine: %v", err)
	}
	if fv == nil {
		t.Fatal("flow event should not be skipped")
	}
	if fv.Spkts != 0 || fv.Dpkts != 0 || fv.Sbytes != 0 || fv.Dbytes != 0 || fv.Dur != 0 {
		t.Errorf("numeric fields should default to zero, got %+v", *fv)
	}
	if fv.Proto != "udp" {
		t.Errorf("proto = %q, want udp", fv.Proto)
	}
	if fv.State != UnknownCategory {
		t.Errorf("state = %q, want %q", fv.State, UnknownCategory)
	}
}

func TestFromEVELine_StateFallsBackToAppProto(t *testing.T) {
	t.Parallel()
	fv, err := FromEVELine([]byte(`{"event_type":"flow","proto":"tcp","app_proto":"tls","flow":{"pkts_toserver":3}}`))
	if err != nil {
		t.Fatalf("FromEVELine: %v", err)
	}
	if fv.State != "tls" {
		t.Errorf("state = %q, want tls", fv.State)
	}
}

func TestFromEVELine_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, err := FromEVELine([]byte("not json at all"))
	var ee *model.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
}

func TestFromEVELine_BlankLine(t *testing.T) {
	t.Parallel()
	fv, err := FromEVELine([]byte("   "))
	if err != nil || fv != nil {
		t.Errorf("blank line should be skipped, got fv=%v err=%v", fv, err)
	}
}

func TestFromZeekLine_Complete(t *testing.T) {
	t.Parallel()
	line := `{"ts":1694530210.5,"uid":"CdRq1","proto":"tcp","service":"http","orig_pkts":12,"resp_pkts":9,"orig_bytes":8500,"resp_bytes":900,"duration":0.15,"conn_state":"SF"}`
	fv, err := FromZeekLine([]byte(line))
	if err != nil {
		t.Fatalf("FromZeekLine: %v", err)
	}
	if fv == nil {
		t.Fatal("conn entry should not be skipped")
	}
	want := model.FeatureVector{Proto: "tcp", State: "http", Spkts: 12, Dpkts: 9, Sbytes: 8500, Dbytes: 900, Dur: 0.15}
	if *fv != want {
		t.Errorf("fv = %+v, want %+v", *fv, want)
	}
}

// Zeek omits counters and the service field when it observed nothing; each
// numeric field independently defaults to zero and service to "unknown".
func TestFromZeekLine_AbsentFieldsDefault(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct {
		name string
		line string
		want model.FeatureVector
	}{
		{"no counters", `{"proto":"udp","service":"dns"}`,
			model.FeatureVector{Proto: "udp", State: "dns"}},
		{"no service", `{"proto":"tcp","orig_pkts":3}`,
			model.FeatureVector{Proto: "tcp", State: UnknownCategory, Spkts: 3}},
		{"null service", `{"proto":"tcp","service":null,"resp_bytes":40}`,
			model.FeatureVector{Proto: "tcp", State: UnknownCategory, Dbytes: 40}},
		{"no duration", `{"proto":"icmp","service":"","orig_bytes":64}`,
			model.FeatureVector{Proto: "icmp", State: UnknownCategory, Sbytes: 64}},
		{"empty record", `{}`,
			model.FeatureVector{Proto: UnknownCategory, State: UnknownCategory}},
	} {
		fv, err := FromZeekLine([]byte(tt.line))
		if err != nil {
			t.Errorf("%s: FromZeekLine: %v", tt.name, err)
			continue
		}
		if fv == nil {
			t.Errorf("%s: conn entry should not be skipped", tt.name)
			continue
		}
		if *fv != tt.want {
			t.Errorf("%s: fv = %+v, want %+v", tt.name, *fv, tt.want)
		}
	}
}

func TestFromZeekLine_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, err := FromZeekLine([]byte("#separator \\x09"))
	var ee *model.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
}

func TestFromZeekLine_BlankLine(t *testing.T) {
	t.Parallel()
	fv, err := FromZeekLine([]byte(""))
	if err != nil || fv != nil {
		t.Errorf("blank line should be skipped, got fv=%v err=%v", fv, err)
	}
}
