package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

// maxTextLength is Notion's limit for the content of one rich_text item.
const maxTextLength = 2000

func Divider() notionapi.Block {
	return &notionapi.DividerBlock{
		BasicBlock: basic(notionapi.BlockTypeDivider),
		Divider:    notionapi.Divider{},
	}
}

// MarkdownToBlocks converts one block per non-blank line. "## " and "### "
// become headings, and "#### " becomes a level 3 heading because Notion has no
// level 4. Every other line is a paragraph.
func MarkdownToBlocks(markdown string) []notionapi.Block {
	var blocks []notionapi.Block

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#### "):
			blocks = append(blocks, heading3(line[len("#### "):]))
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, heading3(line[len("### "):]))
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, &notionapi.Heading2Block{
				BasicBlock: basic(notionapi.BlockTypeHeading2),
				Heading2:   notionapi.Heading{RichText: richText(line[len("## "):])},
			})
		default:
			blocks = append(blocks, &notionapi.ParagraphBlock{
				BasicBlock: basic(notionapi.BlockTypeParagraph),
				Paragraph:  notionapi.Paragraph{RichText: richText(line)},
			})
		}
	}

	return blocks
}

func basic(t notionapi.BlockType) notionapi.BasicBlock {
	return notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: t}
}

func heading3(text string) notionapi.Block {
	return &notionapi.Heading3Block{
		BasicBlock: basic(notionapi.BlockTypeHeading3),
		Heading3:   notionapi.Heading{RichText: richText(text)},
	}
}

func richText(content string) []notionapi.RichText {
	var rich []notionapi.RichText
	for _, chunk := range splitRunes(content, maxTextLength) {
		rich = append(rich, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: chunk},
		})
	}
	return rich
}

func splitRunes(s string, n int) []string {
	runes := []rune(s)
	if len(runes) <= n {
		return []string{s}
	}

	var out []string
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
