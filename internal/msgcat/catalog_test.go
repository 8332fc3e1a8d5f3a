package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedErrors(t *testing.T) {
	c := MustDefault()
	got := c.Error("RoomFull", ErrorData{RoomID: "r1"}, "fallback")
	if got != "Room r1 is full" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := c.Error("NoSuchCode", ErrorData{}, "fallback"); got != "fallback" {
		t.Fatalf("missing key should fall back, got %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.Error("WrongTurn", ErrorData{}, "fb"); got != "fb" {
		t.Fatalf("nil catalog should fall back")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  WrongTurn: \"Wait for {{.Detail}}\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Error("WrongTurn", ErrorData{Detail: "black"}, ""); got != "Wait for black" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Error("GameOver", ErrorData{}, ""); got != "The game is already over" {
		t.Fatalf("embedded key lost: %q", got)
	}
}

func TestDuplicateOverrideKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("errors:\n  WrongTurn: x\n")
	os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644)
	os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o644)
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestRenderMissingTemplate(t *testing.T) {
	c := MustDefault()
	if _, err := c.Render("nope", nil); err == nil {
		t.Fatalf("expected error")
	}
	s, err := c.Render("webhook.finished", map[string]string{
		"White": "a", "Black": "b", "Outcome": "draw", "Reason": "stalemate", "RoomID": "r",
	})
	if err != nil || s != "a vs b: draw by stalemate in room r" {
		t.Fatalf("render: %q %v", s, err)
	}
}
