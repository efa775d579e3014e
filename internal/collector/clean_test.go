package collector

import (
	"testing"
	"unicode"
)

func TestCleanRemovesTagsAndEntities(t *testing.T) {
	c := &Cleaner{}
	cases := []struct{ in, want string }{
		{"<b>핀테크</b> 뉴스", "핀테크 뉴스"},
		{"A &amp; B", "A & B"},
		{"&lt;b&gt;bold&lt;/b&gt; text", "bold text"},
		{"  multiple \n\t spaces  ", "multiple spaces"},
		{"&amp;lt;script&amp;gt;x", "x"},
		{"no markup", "no markup"},
	}
	for _, tc := range cases {
		if got := c.Clean(tc.in); got != tc.want {
			t.Fatalf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanKoreanAllowList(t *testing.T) {
	c := &Cleaner{Allow: KoreanAlnum}
	got := c.Clean(`<b>삼성전자</b>, "AI" 반도체&quot;투자&quot; 2조…`)
	want := "삼성전자 AI 반도체 투자 2조"
	if got != want {
		t.Fatalf("Clean = %q, want %q", got, want)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"<b>핀테크</b> &amp; 뉴스",
		"&amp;amp;amp;",
		"<<b>>x<</b>>",
		"a &lt;i&gt;b&lt;/i&gt; c",
		"",
	}
	cleaners := []*Cleaner{nil, {}, {Allow: KoreanAlnum}}
	for _, c := range cleaners {
		for _, in := range inputs {
			once := c.Clean(in)
			if twice := c.Clean(once); twice != once {
				t.Fatalf("Clean not idempotent for %q: %q -> %q", in, once, twice)
			}
		}
	}
}

func TestCleanerApplyOnlyListedFields(t *testing.T) {
	c := &Cleaner{Fields: NewsFields}
	in := Record{"title": "<b>t</b>", "description": "a&amp;b", "link": "https://x/?a=1&amp;b=2"}
	out := c.Apply(in)
	if out["title"] != "t" || out["description"] != "a&b" {
		t.Fatalf("unexpected cleaned record: %v", out)
	}
	if out["link"] != in["link"] {
		t.Fatalf("link must be untouched, got %q", out["link"])
	}
	if in["title"] != "<b>t</b>" {
		t.Fatalf("input record must not be modified")
	}
}

func TestParseCharset(t *testing.T) {
	cs, err := ParseCharset("")
	if err != nil || cs != nil {
		t.Fatalf("empty spec should mean no filter, got %v %v", cs, err)
	}

	cs, err = ParseCharset("korean")
	if err != nil {
		t.Fatalf("ParseCharset(korean): %v", err)
	}
	for _, r := range []rune{'가', '힣', 'a', 'Z', '7'} {
		if !cs.Allows(r) {
			t.Fatalf("korean should allow %q", r)
		}
	}
	for _, r := range []rune{'ㄱ', '中', '!', ' '} {
		if cs.Allows(r) {
			t.Fatalf("korean should not allow %q", r)
		}
	}

	cs, err = ParseCharset("Han, ascii-alnum, 3040-309F")
	if err != nil {
		t.Fatalf("ParseCharset: %v", err)
	}
	if !cs.Allows('中') || !cs.Allows('あ') || !cs.Allows('x') || cs.Allows('가') {
		t.Fatalf("unexpected allow set")
	}

	if _, err := ParseCharset("Nd"); err != nil {
		t.Fatalf("category should parse: %v", err)
	}
	if !NewCharset(unicode.Nd).Allows('٣') {
		t.Fatalf("Nd should allow arabic-indic digit")
	}

	if _, err := ParseCharset("not-a-range"); err == nil {
		t.Fatalf("expected error for bad spec")
	}
	if _, err := ParseCharset("D7A3-AC00"); err == nil {
		t.Fatalf("expected error for reversed range")
	}
}
