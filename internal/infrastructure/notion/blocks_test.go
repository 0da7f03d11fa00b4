package notion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(t *testing.T, b notionapi.Block) string {
	t.Helper()

	switch b := b.(type) {
	case *notionapi.Heading2Block:
		return b.Heading2.RichText[0].Text.Content
	case *notionapi.Heading3Block:
		return b.Heading3.RichText[0].Text.Content
	case *notionapi.ParagraphBlock:
		return b.Paragraph.RichText[0].Text.Content
	}
	t.Fatalf("unexpected block %T", b)
	return ""
}

func TestMarkdownToBlocks(t *testing.T) {
	md := "## 見出し2\n\n### 見出し3\n#### details\n  plain line  \n# error heading\n- item"

	blocks := MarkdownToBlocks(md)
	require.Len(t, blocks, 6)

	wantTypes := []notionapi.BlockType{
		notionapi.BlockTypeHeading2,
		notionapi.BlockTypeHeading3,
		notionapi.BlockTypeHeading3,
		notionapi.BlockTypeParagraph,
		notionapi.BlockTypeParagraph,
		notionapi.BlockTypeParagraph,
	}
	wantText := []string{"見出し2", "見出し3", "details", "plain line", "# error heading", "- item"}
	for i, b := range blocks {
		assert.Equal(t, wantTypes[i], b.GetType(), i)
		assert.Equal(t, wantText[i], text(t, b), i)
	}
}

func TestMarkdownToBlocks_Empty(t *testing.T) {
	assert.Empty(t, MarkdownToBlocks("\n  \n"))
}

func TestMarkdownToBlocks_SplitsLongText(t *testing.T) {
	line := strings.Repeat("あ", maxTextLength*2+5)

	blocks := MarkdownToBlocks(line)
	require.Len(t, blocks, 1)

	rich := blocks[0].(*notionapi.ParagraphBlock).Paragraph.RichText
	require.Len(t, rich, 3)
	assert.Equal(t, maxTextLength, utf8.RuneCountInString(rich[0].Text.Content))
	assert.Equal(t, maxTextLength, utf8.RuneCountInString(rich[1].Text.Content))
	assert.Equal(t, 5, utf8.RuneCountInString(rich[2].Text.Content))
}

func TestDivider(t *testing.T) {
	assert.Equal(t, notionapi.BlockTypeDivider, Divider().GetType())
}
