package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		version int
		want    string
	}{
		{"v1 plain", "Квест у фонтана", MarkdownV1, "Квест у фонтана"},
		{"v1 specials", "a_b*c`d[e", MarkdownV1, `a\_b\*c` + "\\`" + `d\[e`},
		{"v2 dot and dash", "точка №1. готово-ли", MarkdownV2, `точка №1\. готово\-ли`},
		{"v2 parens", "call(x)", MarkdownV2, `call\(x\)`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EscapeMarkdown(tc.in, tc.version, "")
			if err != nil {
				t.Fatalf("EscapeMarkdown: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEscapeMarkdownUnknownVersion(t *testing.T) {
	if _, err := EscapeMarkdown("x", 3, ""); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}
