package progressmon

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleSinkNonTTYPrintsOneLinePerRender(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	if sink.isTTY {
		t.Fatalf("expected a bytes.Buffer to not be detected as a tty")
	}

	sink.Render("fetch(2) | 1s projects/a")
	sink.Render("fetch(1) | 2s projects/b")

	out := buf.String()
	if strings.Count(out, "\n") != 2 {
		t.Errorf("expected one line per Render call, got %q", out)
	}
	if !strings.Contains(out, "projects/a") || !strings.Contains(out, "projects/b") {
		t.Errorf("expected both rendered lines present, got %q", out)
	}
}

func TestConsoleSinkCloseIsNoOpWithoutTTY(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	sink.Render("fetch(1) | 1s projects/a")
	before := buf.Len()
	sink.Close()
	if buf.Len() != before {
		t.Errorf("expected Close to write nothing when not a tty")
	}
}
