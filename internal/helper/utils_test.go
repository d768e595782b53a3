package helper

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around", in: "Here you go: {\"a\":1} hope it helps", want: `{"a":1}`},
		{name: "array", in: "```\n[1,2]\n```", want: `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSON(tt.in); got != tt.want {
				t.Fatalf("CleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	if got := Slugify("A skincare shelf, in a Store!", 50); got != "a_skincare_shelf_in_a_store" {
		t.Fatalf("unexpected slug %q", got)
	}
	if got := Slugify("???", 50); got != "image" {
		t.Fatalf("expected fallback slug, got %q", got)
	}
	if got := Slugify("abcdefghij", 4); len(got) != 4 {
		t.Fatalf("expected slug truncated to 4, got %q", got)
	}
}

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateUUID()
	if a == b || len(a) != 36 {
		t.Fatalf("expected two distinct uuids, got %q and %q", a, b)
	}
}

func TestPrettyPrint(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	PrettyPrint(map[string]int{"slides": 3})
	os.Stdout = stdout
	w.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(out)); got != "{\n  \"slides\": 3\n}" {
		t.Fatalf("unexpected output %q", got)
	}
}
