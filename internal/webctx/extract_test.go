package webctx

import (
	"testing"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		html      string
		wantTitle string
		wantText  string
	}{
		{
			name: "prefers article and drops chrome",
			html: `<html><head><title> My   Page </title><style>p{}</style></head><body>
<header>Site header</header><nav><a href="/">Home</a></nav>
<main><p>main text</p><article><h2>Title</h2><p>Para one.</p><p>Para <b>two</b>.</p>
<script>track()</script></article></main>
<aside>related</aside><footer>footer</footer></body></html>`,
			wantTitle: "My Page",
			wantText:  "Title\n\nPara one.\n\nPara two.",
		},
		{
			name:      "falls back to main",
			html:      `<body><div>outside</div><main><p>inside main</p></main></body>`,
			wantTitle: "",
			wantText:  "inside main",
		},
		{
			name:      "falls back to body",
			html:      `<body><form><input value="x">Sign in</form><ul><li>one</li><li>two</li></ul></body>`,
			wantTitle: "",
			wantText:  "one\n\ntwo",
		},
		{
			name:      "comments and noscript removed",
			html:      `<body><!-- hidden --><noscript>enable js</noscript><p>visible</p></body>`,
			wantTitle: "",
			wantText:  "visible",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			title, text, err := ExtractText([]byte(tt.html))
			if err != nil {
				t.Fatalf("ExtractText() error = %v", err)
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	in := "\n\n  a   b \n\n\n\n c\t\td  \n\n"
	if got, want := CollapseWhitespace(in), "a b\n\nc d"; got != want {
		t.Errorf("CollapseWhitespace() = %q, want %q", got, want)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"привет", 4, "прив"},
		{"abc", 0, ""},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
