package dispatcher

import "encoding/json"

// normalizeYearRange accepts a polymorphic year_range argument: either a
// two-element [min, max] array or a {"start":min,"end":max} mapping, per
// §4.9. A nil/empty raw value yields (nil, nil, nil) — no range filter.
func normalizeYearRange(raw json.RawMessage) (min *int, max *int, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}

	var pair [2]*int
	if err := json.Unmarshal(raw, &pair); err == nil {
		return pair[0], pair[1], nil
	}

	var mapping struct {
		Start *int `json:"start"`
		End   *int `json:"end"`
	}
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, nil, &ToolError{Kind: ErrorKindValidation, Message: "year_range must be a [min,max] array or {start,end} object"}
	}
	return mapping.Start, mapping.End, nil
}
