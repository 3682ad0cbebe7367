package journal

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
)

// ExportFormatVersion tags every export this package produces, so a
// consumer can detect a schema change across engine versions.
const ExportFormatVersion = 1

// Summary is the aggregate statistics accompanying an export (§6).
type Summary struct {
	Version        int    `json:"version"`
	TotalEntries   int    `json:"total_entries"`
	TotalSnapshots int    `json:"total_snapshots"`
	MessageCount   int    `json:"message_count"`
	MetadataCount  int    `json:"metadata_count"`
	TickBoundaries int    `json:"tick_boundaries"`
	TickRangeLow   uint64 `json:"tick_range_low"`
	TickRangeHigh  uint64 `json:"tick_range_high"`
}

// exportEntry is the export-friendly flattening of an Entry: Msg's
// EntityRef/ValueMap fields aren't exported for reflection, so params
// and target are rendered through their public Text()/String() forms.
type exportEntry struct {
	Kind       string            `json:"kind"`
	Tick       uint64            `json:"tick"`
	Seq        int               `json:"seq,omitempty"`
	EventId    string            `json:"event_id,omitempty"`
	Target     string            `json:"target,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	SnapshotId string            `json:"snapshot_id,omitempty"`
	Key        string            `json:"key,omitempty"`
	Value      string            `json:"value,omitempty"`
}

func (k EntryKind) String() string {
	switch k {
	case EntryMessage:
		return "message"
	case EntryTickBoundary:
		return "tick_boundary"
	case EntrySnapshot:
		return "snapshot"
	case EntryMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

func flatten(e Entry) exportEntry {
	out := exportEntry{Kind: e.Kind.String(), Tick: e.Tick}
	switch e.Kind {
	case EntryMessage:
		out.Seq = e.Seq
		out.Target = e.Msg.Target.String()
		if e.Msg.HasEvent {
			out.EventId = string(e.Msg.EventId)
		}
		if e.Msg.Params != nil && e.Msg.Params.Len() > 0 {
			params := make(map[string]string, e.Msg.Params.Len())
			for _, k := range e.Msg.Params.Keys() {
				v, _ := e.Msg.Params.Get(k)
				params[k] = v.Text()
			}
			out.Params = params
		}
	case EntrySnapshot:
		out.SnapshotId = e.SnapshotId.String()
	case EntryMetadata:
		out.Key = e.Key
		out.Value = e.Value
	}
	return out
}

// Exporter produces read-only exports of a Journal's entries (§6):
// every export operation is strictly a read and cannot mutate the
// journal it exports.
type Exporter struct {
	j *Journal
}

// NewExporter returns an Exporter over j.
func NewExporter(j *Journal) *Exporter { return &Exporter{j: j} }

// Summarize computes the aggregate Summary for the journal's current
// retained entries.
func (x *Exporter) Summarize() Summary {
	s := Summary{Version: ExportFormatVersion}
	for _, e := range x.j.entries {
		s.TotalEntries++
		switch e.Kind {
		case EntryMessage:
			s.MessageCount++
		case EntryMetadata:
			s.MetadataCount++
		case EntryTickBoundary:
			s.TickBoundaries++
		case EntrySnapshot:
			s.TotalSnapshots++
		}
	}
	if lo, hi, ok := x.j.TickRange(); ok {
		s.TickRangeLow, s.TickRangeHigh = lo, hi
	}
	return s
}

// exportDoc is the top-level shape ExportJSON produces.
type exportDoc struct {
	Summary Summary       `json:"summary"`
	Entries []exportEntry `json:"entries"`
}

// ExportJSON renders every retained entry plus a Summary as one JSON
// document (§6).
func (x *Exporter) ExportJSON() ([]byte, error) {
	doc := exportDoc{Summary: x.Summarize()}
	for _, e := range x.j.entries {
		doc.Entries = append(doc.Entries, flatten(e))
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("journal: export json: %w", err)
	}
	return data, nil
}

// ExportCSV renders every retained entry as a flat CSV table, one row
// per entry, with the summary omitted (CSV has no header/footer
// convention for it).
func (x *Exporter) ExportCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"kind", "tick", "seq", "event_id", "target", "snapshot_id", "key", "value"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("journal: export csv header: %w", err)
	}
	for _, e := range x.j.entries {
		fe := flatten(e)
		row := []string{
			fe.Kind,
			fmt.Sprintf("%d", fe.Tick),
			fmt.Sprintf("%d", fe.Seq),
			fe.EventId,
			fe.Target,
			fe.SnapshotId,
			fe.Key,
			fe.Value,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("journal: export csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("journal: export csv: %w", err)
	}
	return buf.Bytes(), nil
}
