package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	token := []byte{0x00, 0x01, 0xfe, 0xff, 0x10}
	turns := []Turn{
		{Role: RoleUser, Parts: []Part{
			{Text: "make the sofa green"},
			{Image: []byte{0x89, 0x50, 0x4e, 0x47}, MediaType: "image/png"},
		}},
		{Role: RoleModel, Parts: []Part{
			{Image: []byte{0xff, 0xd8, 0xff}, MediaType: "image/jpeg"},
			{Token: token},
		}},
	}

	data, err := Serialize(turns)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("expected %d turns, got %d", len(turns), len(got))
	}
	for i := range turns {
		if got[i].Role != turns[i].Role {
			t.Fatalf("turn %d role mismatch: %q vs %q", i, got[i].Role, turns[i].Role)
		}
		if len(got[i].Parts) != len(turns[i].Parts) {
			t.Fatalf("turn %d part count mismatch", i)
		}
	}
	if !bytes.Equal(got[1].Parts[1].Token, token) {
		t.Fatalf("continuation token not byte-exact: %v vs %v", got[1].Parts[1].Token, token)
	}
	if got[0].Parts[1].MediaType != "image/png" {
		t.Fatalf("media type lost: %q", got[0].Parts[1].MediaType)
	}
}

func TestSerializeTokenLayout(t *testing.T) {
	data, err := Serialize([]Turn{
		{Role: RoleModel, Parts: []Part{{Token: []byte("opaque")}}},
	})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	part := raw[0]["parts"].([]any)[0].(map[string]any)
	if part["encoding"] != "base64" {
		t.Fatalf("token part missing encoding marker: %v", part)
	}
	if _, ok := part["continuation_token"]; !ok {
		t.Fatalf("token part missing continuation_token field: %v", part)
	}
}

func TestDeserializeLegacyPlainToken(t *testing.T) {
	// Older records stored tokens without the base64 marker.
	data := []byte(`[{"role":"model","parts":[{"continuation_token":"plain-token"}]}]`)
	turns, err := Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if string(turns[0].Parts[0].Token) != "plain-token" {
		t.Fatalf("legacy token mangled: %q", turns[0].Parts[0].Token)
	}
}

func TestDeserializeCorrupt(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"wrong shape", `{"role":"user"}`},
		{"unknown role", `[{"role":"assistant","parts":[{"text":"hi"}]}]`},
		{"empty part", `[{"role":"user","parts":[{}]}]`},
		{"two kinds in one part", `[{"role":"user","parts":[{"text":"x","image":"aGk="}]}]`},
		{"bad image base64", `[{"role":"user","parts":[{"image":"%%%"}]}]`},
		{"bad token base64", `[{"role":"user","parts":[{"continuation_token":"%%%","encoding":"base64"}]}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tc.data))
			if err == nil {
				t.Fatalf("expected error for %q", tc.data)
			}
			if !errors.Is(err, ErrCorruptSession) {
				t.Fatalf("expected ErrCorruptSession, got %v", err)
			}
		})
	}
}
