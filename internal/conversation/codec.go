package conversation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Persisted session record layout. Binary payloads are base64 so the record
// survives any text-based store. Continuation tokens are treated as opaque
// and possibly binary, so they get the same treatment plus an explicit
// encoding marker.
type storedTurn struct {
	Role  string       `json:"role"`
	Parts []storedPart `json:"parts"`
}

type storedPart struct {
	Text      string `json:"text,omitempty"`
	Image     string `json:"image,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Token     string `json:"continuation_token,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
}

// Serialize converts a turn history into its persisted JSON form.
func Serialize(turns []Turn) ([]byte, error) {
	out := make([]storedTurn, 0, len(turns))
	for _, t := range turns {
		st := storedTurn{Role: string(t.Role), Parts: make([]storedPart, 0, len(t.Parts))}
		for _, p := range t.Parts {
			switch {
			case p.IsImage():
				st.Parts = append(st.Parts, storedPart{
					Image:     base64.StdEncoding.EncodeToString(p.Image),
					MediaType: p.MediaType,
				})
			case p.IsToken():
				st.Parts = append(st.Parts, storedPart{
					Token:    base64.StdEncoding.EncodeToString(p.Token),
					Encoding: "base64",
				})
			default:
				st.Parts = append(st.Parts, storedPart{Text: p.Text})
			}
		}
		out = append(out, st)
	}
	return json.Marshal(out)
}

// Deserialize is the inverse of Serialize. A record that fails to parse, or
// parses into a shape other than the expected one, is reported via
// ErrCorruptSession: retrying against the same bytes can never succeed.
func Deserialize(data []byte) ([]Turn, error) {
	var stored []storedTurn
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	turns := make([]Turn, 0, len(stored))
	for i, st := range stored {
		role := Role(st.Role)
		if role != RoleUser && role != RoleModel {
			return nil, fmt.Errorf("%w: turn %d has role %q", ErrCorruptSession, i, st.Role)
		}
		t := Turn{Role: role, Parts: make([]Part, 0, len(st.Parts))}
		for j, sp := range st.Parts {
			p, err := decodePart(sp)
			if err != nil {
				return nil, fmt.Errorf("%w: turn %d part %d: %v", ErrCorruptSession, i, j, err)
			}
			t.Parts = append(t.Parts, p)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func decodePart(sp storedPart) (Part, error) {
	kinds := 0
	if sp.Text != "" {
		kinds++
	}
	if sp.Image != "" {
		kinds++
	}
	if sp.Token != "" {
		kinds++
	}
	if kinds != 1 {
		return Part{}, fmt.Errorf("part must be exactly one of text/image/continuation_token")
	}
	switch {
	case sp.Image != "":
		raw, err := base64.StdEncoding.DecodeString(sp.Image)
		if err != nil {
			return Part{}, fmt.Errorf("bad image payload: %v", err)
		}
		return Part{Image: raw, MediaType: sp.MediaType}, nil
	case sp.Token != "":
		if sp.Encoding == "base64" {
			raw, err := base64.StdEncoding.DecodeString(sp.Token)
			if err != nil {
				return Part{}, fmt.Errorf("bad continuation token: %v", err)
			}
			return Part{Token: raw}, nil
		}
		// Legacy records stored tokens as plain strings.
		return Part{Token: []byte(sp.Token)}, nil
	default:
		return Part{Text: sp.Text}, nil
	}
}
