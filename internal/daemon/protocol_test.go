package daemon

import (
	"encoding/json"
	"testing"
)

func TestCommandOmitsEmptyFields(t *testing.T) {
	cmd := Command{Cmd: CmdClear}
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	for _, key := range []string{"id", "entry", "events"} {
		if _, ok := raw[key]; ok {
			t.Errorf("clear command should omit %s", key)
		}
	}
}

func TestCommandWithID(t *testing.T) {
	data, err := json.Marshal(Command{Cmd: CmdFavorite, ID: IDPtr(0)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"cmd":"favorite","id":0}` {
		t.Errorf("json = %s, want id 0 kept", data)
	}
}

func TestResponseEntries(t *testing.T) {
	j := `{"ok":true,"entries":[{"id":1,"transcript":"Hallo Welt","timestamp":"2026-03-14T09:30:00Z","wordCount":2,"polishUsed":false,"favorite":true}]}`

	var resp Response
	if err := json.Unmarshal([]byte(j), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !resp.OK {
		t.Error("ok = false, want true")
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("entries len = %d, want 1", len(resp.Entries))
	}
	e := resp.Entries[0]
	if e.ID != 1 || e.Transcript != "Hallo Welt" || !e.Favorite || e.WordCount != 2 {
		t.Errorf("entry = %+v", e)
	}
	if e.Polished != "" {
		t.Errorf("polished = %q, want empty", e.Polished)
	}
}

func TestResponseError(t *testing.T) {
	j := `{"ok":false,"error":"entry not found"}`

	var resp Response
	if err := json.Unmarshal([]byte(j), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.OK {
		t.Error("ok = true, want false")
	}
	if resp.Error != "entry not found" {
		t.Errorf("error = %q, want %q", resp.Error, "entry not found")
	}
}

func TestEventHistoryKeepsEmptyList(t *testing.T) {
	data, err := json.Marshal(Event{Event: EventHistory, Entries: nil})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, ok := raw["entries"]; !ok {
		t.Error("history event should always carry entries")
	}
}

func TestIDPtr(t *testing.T) {
	p := IDPtr(42)
	if p == nil || *p != 42 {
		t.Error("IDPtr(42) should return pointer to 42")
	}
}
