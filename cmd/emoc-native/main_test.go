package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestServeReportsErrors(t *testing.T) {
	var out bytes.Buffer
	d := NewDaemon(t.TempDir(), &out)

	input := strings.Join([]string{
		`not json`,
		``,
		`{"args": [1]}`,
		`{"name": "missing", "args": [1, "two"]}`,
	}, "\n")
	if err := d.Serve(strings.NewReader(input)); err != nil {
		t.Fatal(err)
	}

	dec := json.NewDecoder(&out)
	var replies []Response
	for dec.More() {
		var r Response
		if err := dec.Decode(&r); err != nil {
			t.Fatal(err)
		}
		replies = append(replies, r)
	}
	if len(replies) != 3 {
		t.Fatalf("got %d replies, want 3: %+v", len(replies), replies)
	}

	wants := []string{"invalid JSON", "request has no name", "plugin not found"}
	for i, want := range wants {
		if replies[i].Result != nil || !strings.Contains(replies[i].Error, want) {
			t.Errorf("reply %d = %+v, want error containing %q", i, replies[i], want)
		}
	}
}
