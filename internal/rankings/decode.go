package rankings

import (
	"encoding/json"
	"fmt"
)

var profileFields = []string{"id", "rank", "handle", "followersCount"}

// decoder turns success bodies into typed values. Without strict mode it
// trusts the payload shape and missing fields decode to zero values.
type decoder struct {
	strict bool
}

func (d decoder) profiles(op Operation, body []byte) ([]Profile, error) {
	if d.strict {
		var raw []map[string]json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, decodeError(op, err)
		}
		for i, obj := range raw {
			if err := requireFields(obj, profileFields...); err != nil {
				return nil, decodeError(op, fmt.Errorf("profile %d: %w", i, err))
			}
		}
	}

	var profiles []Profile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, decodeError(op, err)
	}
	return profiles, nil
}

func (d decoder) count(op Operation, body []byte) (int, error) {
	if err := d.checkObject(body, "count"); err != nil {
		return 0, decodeError(op, err)
	}
	var resp countResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, decodeError(op, err)
	}
	return resp.Count, nil
}

func (d decoder) rank(op Operation, body []byte) (int, error) {
	if err := d.checkObject(body, "rank"); err != nil {
		return 0, decodeError(op, err)
	}
	var resp rankResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, decodeError(op, err)
	}
	return resp.Rank, nil
}

func (d decoder) checkObject(body []byte, fields ...string) error {
	if !d.strict {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return err
	}
	return requireFields(raw, fields...)
}

func requireFields(obj map[string]json.RawMessage, fields ...string) error {
	for _, f := range fields {
		v, ok := obj[f]
		if !ok || string(v) == "null" {
			return fmt.Errorf("missing field %q", f)
		}
	}
	return nil
}
