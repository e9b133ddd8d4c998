package transport

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTextShort(t *testing.T) {
	got := SplitText("hello", 10, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	line := strings.Repeat("a", 30)
	s := line + "\n" + line + "\n" + line
	got := SplitText(s, 70, "")
	if len(got) != 2 {
		t.Fatalf("want 2 chunks, got %d: %q", len(got), got)
	}
	if got[0] != line+"\n"+line || got[1] != line {
		t.Fatalf("unexpected split: %q", got)
	}
}

func TestSplitTextRuneLimit(t *testing.T) {
	s := strings.Repeat("🚨", 25)
	got := SplitText(s, 10, "")
	if len(got) != 3 {
		t.Fatalf("want 3 chunks, got %d", len(got))
	}
	for _, c := range got {
		if n := utf8.RuneCountInString(c); n > 10 {
			t.Fatalf("chunk has %d runes", n)
		}
	}
	if strings.Join(got, "") != s {
		t.Fatal("chunks lost text")
	}
}

func TestSplitTextKeepsHTMLTagsWhole(t *testing.T) {
	s := strings.Repeat("x", 8) + "<b>bold</b>"
	got := SplitText(s, 10, "HTML")
	if got[0] != strings.Repeat("x", 8) {
		t.Fatalf("tag was cut: %q", got)
	}
	if strings.Join(got, "") != s {
		t.Fatalf("chunks lost text: %q", got)
	}
}
