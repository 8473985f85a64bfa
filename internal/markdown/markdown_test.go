package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTML(t *testing.T) {
	src := "Use **versioning**:\n\n```hcl\nresource \"aws_s3_bucket\" \"b\" {}\n```\n\n<script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	out, err := ToHTML(src)
	require.NoError(t, err)

	assert.Contains(t, out, "<strong>versioning</strong>")
	assert.Contains(t, out, `<code class="language-hcl">`)
	assert.Contains(t, out, "<table>")
	assert.NotContains(t, out, "<script>")
}

func TestToHTMLStripsUnsafeLinks(t *testing.T) {
	out, err := ToHTML("[x](javascript:alert(1))")
	require.NoError(t, err)
	assert.NotContains(t, out, "javascript:")
}

func TestCodeBlocks(t *testing.T) {
	src := "Intro\n```hcl\nprovider \"aws\" {}\n```\ntext\n```\nplain\n```\n"
	blocks := CodeBlocks(src)
	require.Len(t, blocks, 2)
	assert.Equal(t, CodeBlock{Language: "hcl", Code: "provider \"aws\" {}\n"}, blocks[0])
	assert.Equal(t, CodeBlock{Code: "plain\n"}, blocks[1])
	assert.Empty(t, CodeBlocks("no code here"))
}
