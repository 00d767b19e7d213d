package trace

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Wire shapes. Field order here is the field order on disk: clk leads on
// every clk-bearing line, the "type" discriminator follows.

type headerWire struct {
	Type     Kind   `json:"type"`
	Version  string `json:"version"`
	Metadata Attrs  `json:"metadata"`
}

type recordWire struct {
	Clk         int64     `json:"clk"`
	Type        Kind      `json:"type"`
	Name        string    `json:"name"`
	RecordType  string    `json:"record_type"`
	ID          RecordID  `json:"id"`
	ParentID    *RecordID `json:"parent_id"`
	Description string    `json:"description"`
	Data        Attrs     `json:"data,omitempty"`
}

type recordEndWire struct {
	Clk      int64    `json:"clk"`
	Type     Kind     `json:"type"`
	RecordID RecordID `json:"record_id"`
}

type annotationWire struct {
	Type        Kind     `json:"type"`
	Name        string   `json:"name"`
	RecordID    RecordID `json:"record_id"`
	Description string   `json:"description"`
	Data        Attrs    `json:"data"`
}

type eventWire struct {
	Clk         int64    `json:"clk"`
	Type        Kind     `json:"type"`
	Name        string   `json:"name"`
	RecordID    RecordID `json:"record_id"`
	Description string   `json:"description"`
	Data        Attrs    `json:"data,omitempty"`
}

// Marshal encodes a single line as one JSON object without the trailing
// newline.
func Marshal(l Line) ([]byte, error) {
	switch v := l.(type) {
	case Header:
		meta := v.Metadata
		if meta == nil {
			meta = Attrs{}
		}
		return sonic.Marshal(headerWire{Type: KindHeader, Version: v.Version, Metadata: meta})
	case Record:
		return sonic.Marshal(recordWire{
			Clk: v.Clk, Type: KindRecord, Name: v.Name, RecordType: v.RecordType,
			ID: v.ID, ParentID: v.ParentID, Description: v.Description, Data: v.Data,
		})
	case RecordEnd:
		return sonic.Marshal(recordEndWire{Clk: v.Clk, Type: KindRecordEnd, RecordID: v.RecordID})
	case Annotation:
		data := v.Data
		if data == nil {
			data = Attrs{}
		}
		return sonic.Marshal(annotationWire{
			Type: KindAnnotation, Name: v.Name, RecordID: v.RecordID,
			Description: v.Description, Data: data,
		})
	case Event:
		return sonic.Marshal(eventWire{
			Clk: v.Clk, Type: KindEvent, Name: v.Name, RecordID: v.RecordID,
			Description: v.Description, Data: v.Data,
		})
	case Footer:
		return marshalFooter(v)
	default:
		return nil, fmt.Errorf("marshal: unknown line type %T", l)
	}
}

// marshalFooter goes through Attrs so that the known fields keep their
// position ahead of any extra fields.
func marshalFooter(f Footer) ([]byte, error) {
	fields := Attrs{}.
		Set("type", KindFooter).
		Set("capture_end_clk", f.CaptureEndClk).
		Set("total_records", f.TotalRecords).
		Set("total_annotations", f.TotalAnnotations).
		Set("total_events", f.TotalEvents)
	for _, kv := range f.Extra {
		fields = append(fields, kv)
	}
	return fields.MarshalJSON()
}

// Unmarshal decodes a single JSON line into its concrete Line type.
func Unmarshal(data []byte) (Line, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := sonic.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	switch probe.Type {
	case KindHeader:
		var w headerWire
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("unmarshal header: %w", err)
		}
		return Header{Version: w.Version, Metadata: w.Metadata}, nil
	case KindRecord:
		var w recordWire
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		return Record{
			Clk: w.Clk, Name: w.Name, RecordType: w.RecordType, ID: w.ID,
			ParentID: w.ParentID, Description: w.Description, Data: w.Data,
		}, nil
	case KindRecordEnd:
		var w recordEndWire
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("unmarshal record_end: %w", err)
		}
		return RecordEnd{Clk: w.Clk, RecordID: w.RecordID}, nil
	case KindAnnotation:
		var w annotationWire
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("unmarshal annotation: %w", err)
		}
		return Annotation{Name: w.Name, RecordID: w.RecordID, Description: w.Description, Data: w.Data}, nil
	case KindEvent:
		var w eventWire
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		return Event{Clk: w.Clk, Name: w.Name, RecordID: w.RecordID, Description: w.Description, Data: w.Data}, nil
	case KindFooter:
		return unmarshalFooter(data)
	case "":
		return nil, fmt.Errorf("unmarshal: missing line type")
	default:
		return nil, fmt.Errorf("unmarshal: unknown line type %q", probe.Type)
	}
}

func unmarshalFooter(data []byte) (Line, error) {
	var fields Attrs
	if err := fields.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("unmarshal footer: %w", err)
	}
	var f Footer
	for _, kv := range fields {
		switch kv.Key {
		case "type":
			// discriminator, already consumed
		case "capture_end_clk":
			f.CaptureEndClk = decodeOptInt64(kv.Value)
		case "total_records":
			f.TotalRecords = decodeOptInt(kv.Value)
		case "total_annotations":
			f.TotalAnnotations = decodeOptInt(kv.Value)
		case "total_events":
			f.TotalEvents = decodeOptInt(kv.Value)
		default:
			f.Extra = append(f.Extra, kv)
		}
	}
	return f, nil
}

func decodeOptInt64(raw []byte) *int64 {
	var v *int64
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func decodeOptInt(raw []byte) *int {
	var v *int
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
