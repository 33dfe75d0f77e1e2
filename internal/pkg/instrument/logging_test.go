package instrument

import (
	"log/slog"
	"testing"
)

func TestBuildMaskKeys_CodeAlwaysMasked(t *testing.T) {
	keys := buildMaskKeys(nil)

	for _, field := range []string{"code", "code_hash"} {
		if _, ok := keys[field]; !ok {
			t.Fatalf("expected %q masked without configuration, got %v", field, keys)
		}
	}
}

func TestBuildMaskKeys_MergesConfigured(t *testing.T) {
	keys := buildMaskKeys([]string{" Password ", ""})

	if _, ok := keys["password"]; !ok {
		t.Fatalf("expected configured field normalized and kept, got %v", keys)
	}
	if _, ok := keys["code"]; !ok {
		t.Fatalf("expected built-in fields kept alongside configured ones, got %v", keys)
	}
}

func TestMaskAttr_MasksCodeInBody(t *testing.T) {
	keys := buildMaskKeys(nil)

	attr := maskAttr(slog.String("body", `{"email":"a@example.com","code":"1234"}`), keys)
	if got := attr.Value.String(); got != `{"code":"***","email":"a@example.com"}` {
		t.Fatalf("expected code masked in JSON body, got %s", got)
	}

	attr = maskAttr(slog.String("code", "1234"), keys)
	if got := attr.Value.String(); got != "***" {
		t.Fatalf("expected top-level code attribute masked, got %s", got)
	}
}
