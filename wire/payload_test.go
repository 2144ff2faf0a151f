package wire

import (
	"encoding/json"
	"testing"
)

func TestPayload_Equal(t *testing.T) {
	cases := []struct {
		name string
		a, b Payload
		want bool
	}{
		{"raw equal", RawPayload([]byte("abc")), RawPayload([]byte("abc")), true},
		{"raw differ", RawPayload([]byte("abc")), RawPayload([]byte("abd")), false},
		{"string equal", StringPayload("hi"), StringPayload("hi"), true},
		{"json structurally equal despite whitespace",
			JSONPayload(json.RawMessage(`{"a":1,"b":2}`)),
			JSONPayload(json.RawMessage(`{ "b": 2, "a": 1 }`)),
			true},
		{"json differ", JSONPayload(json.RawMessage(`{"a":1}`)), JSONPayload(json.RawMessage(`{"a":2}`)), false},
		{"content type mismatch", RawPayload([]byte("x")), StringPayload("x"), false},
		{"empty json both nil treated equal", JSONPayload(nil), JSONPayload(nil), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Errorf("Equal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMarshalJSONPayload(t *testing.T) {
	p, err := MarshalJSONPayload(map[string]string{"event": "register", "channel": "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.ContentType != ContentJSON {
		t.Fatalf("ContentType = %v, want ContentJSON", p.ContentType)
	}
	var got map[string]string
	if err := json.Unmarshal(p.JSON, &got); err != nil {
		t.Fatal(err)
	}
	if got["event"] != "register" || got["channel"] != "c1" {
		t.Errorf("unexpected decoded map: %+v", got)
	}
}

func TestPayload_Bytes_RejectsInvalidJSON(t *testing.T) {
	p := Payload{ContentType: ContentJSON, JSON: json.RawMessage("{not valid")}
	if _, err := p.Bytes(); err == nil {
		t.Fatal("expected error for invalid JSON payload")
	}
}
