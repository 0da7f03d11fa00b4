package note_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yasu-888/monologue-muser/internal/domain/note"
)

func TestNextActionsMarkdown(t *testing.T) {
	assert.Equal(t, "", note.Note{}.NextActionsMarkdown())
	assert.Equal(t, "### NextActions\n- 本を読む\n- 走る", note.Note{NextActions: []string{"本を読む", "走る"}}.NextActionsMarkdown())
}
