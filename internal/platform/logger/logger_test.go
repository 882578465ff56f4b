package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "abc", "file_name", "notes.pdf"})
	if len(out) != 4 {
		t.Fatalf("len: want=4 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key: want=[REDACTED] got=%v", out[1])
	}
	if out[3] != "notes.pdf" {
		t.Fatalf("file_name: want=notes.pdf got=%v", out[3])
	}
}

func TestSanitizeKVsHashesIdentity(t *testing.T) {
	out := sanitizeKVs([]interface{}{"athro_id", "athro-123"})
	got, _ := out[1].(string)
	if len(got) != len("hash:")+12 || got[:5] != "hash:" {
		t.Fatalf("athro_id: want hash:<12 hex> got=%q", got)
	}
	again := sanitizeKVs([]interface{}{"athro_id", "athro-123"})
	if again[1] != got {
		t.Fatalf("hash not stable: %v vs %v", again[1], got)
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("dangling key dropped: %v", out)
	}
}

func TestNopLogger(t *testing.T) {
	log := Nop()
	log.With("component", "test").Info("hello", "k", "v")
	log.Sync()
}
