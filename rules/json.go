package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnknownKindError reports a rule tag outside the closed set. Transports must
// reject such lists before they reach the executor.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown rule kind %q", e.Kind)
}

func newRule(kind Kind) (Rule, error) {
	switch kind {
	case KindRemovePages:
		return &RemovePages{}, nil
	case KindRotatePages:
		return &RotatePages{}, nil
	case KindExtractPages:
		return &ExtractPages{}, nil
	case KindRearrangePages:
		return &RearrangePages{}, nil
	case KindAddBlankPages:
		return &AddBlankPages{}, nil
	case KindCropPages:
		return &CropPages{}, nil
	case KindResizePages:
		return &ResizePages{}, nil
	case KindMergeDocuments:
		return &MergeDocuments{}, nil
	case KindSplitDocument:
		return &SplitDocument{}, nil
	case KindCompress:
		return &Compress{}, nil
	case KindAddWatermark:
		return &AddWatermark{}, nil
	case KindAddImage:
		return &AddImage{}, nil
	case KindAddHeaderFooter:
		return &AddHeaderFooter{}, nil
	case KindAddPageNumbers:
		return &AddPageNumbers{}, nil
	case KindAddTextAnnotation:
		return &AddTextAnnotation{}, nil
	case KindAddBackground:
		return &AddBackground{}, nil
	case KindAddBorder:
		return &AddBorder{}, nil
	case KindRedactText:
		return &RedactText{}, nil
	case KindPasswordProtect:
		return &PasswordProtect{}, nil
	case KindRemovePassword:
		return &RemovePassword{}, nil
	case KindApplyOverlay:
		return &ApplyOverlay{}, nil
	case KindConvertFormat:
		return &ConvertFormat{}, nil
	}
	return nil, &UnknownKindError{Kind: kind}
}

type envelope struct {
	ID   string `json:"id,omitempty"`
	Kind Kind   `json:"kind"`
}

// UnmarshalRule decodes one rule object of the form
// {"id": "...", "kind": "...", ...params}. Unknown kinds and unknown
// parameter keys are rejected.
func UnmarshalRule(data []byte) (ListItem, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ListItem{}, fmt.Errorf("decode rule envelope: %w", err)
	}
	if env.Kind == "" {
		return ListItem{}, fmt.Errorf("rule object has no kind")
	}
	r, err := newRule(env.Kind)
	if err != nil {
		return ListItem{}, err
	}

	// Strip the envelope keys, then decode strictly so arbitrary extra
	// parameters never slip into a rule.
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ListItem{}, fmt.Errorf("decode rule body: %w", err)
	}
	delete(m, "id")
	delete(m, "kind")
	body, err := json.Marshal(m)
	if err != nil {
		return ListItem{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(r); err != nil {
		return ListItem{}, fmt.Errorf("decode %s rule: %w", env.Kind, err)
	}
	return ListItem{ID: env.ID, Rule: r}, nil
}

// UnmarshalList decodes a JSON array of rule objects into an execution plan.
func UnmarshalList(data []byte) (List, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode rule list: %w", err)
	}
	out := make(List, 0, len(raws))
	for i, raw := range raws {
		item, err := UnmarshalRule(raw)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// MarshalList encodes the plan back to the wire form, ids included.
func (l List) MarshalJSON() ([]byte, error) {
	items := make([]json.RawMessage, len(l))
	for i, item := range l {
		b, err := marshalRule(item.Rule, item.ID)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		items[i] = b
	}
	return json.Marshal(items)
}

// marshalRule flattens a rule into {"id", "kind", ...params}. An empty id is
// omitted, which is also the canonical form used for fingerprinting.
func marshalRule(r Rule, id string) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(r.Kind())
	m["kind"] = kind
	if id != "" {
		idRaw, _ := json.Marshal(id)
		m["id"] = idRaw
	}
	// Map marshaling sorts keys, which keeps the encoding canonical.
	return json.Marshal(m)
}
