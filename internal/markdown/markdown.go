// Package markdown renders chat replies to sanitized HTML.
package markdown

import (
	"bytes"
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	once     sync.Once
	md       goldmark.Markdown
	sanitize *bluemonday.Policy
)

func setup() {
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	sanitize = bluemonday.UGCPolicy()
	// Keep fenced code language classes (language-hcl, language-bash, ...).
	sanitize.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#.-]+$`)).OnElements("code")
}

// ToHTML converts markdown to HTML and strips anything outside a UGC-safe subset.
func ToHTML(src string) (string, error) {
	once.Do(setup)
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return sanitize.Sanitize(buf.String()), nil
}

var fenceRe = regexp.MustCompile("(?ms)^```([\\w+#.-]*)[ \\t]*\\n(.*?)^```[ \\t]*$")

// CodeBlock is a fenced code block extracted from a reply.
type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// CodeBlocks returns the fenced code blocks in src in order.
func CodeBlocks(src string) []CodeBlock {
	var out []CodeBlock
	for _, m := range fenceRe.FindAllStringSubmatch(src, -1) {
		out = append(out, CodeBlock{Language: m[1], Code: m[2]})
	}
	return out
}
