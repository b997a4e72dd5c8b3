package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1}, {2}}, Chunk([]int{1, 2}, 0))
	assert.Empty(t, Chunk([]int(nil), 3))
}

func TestInlineButtonsNPerRow(t *testing.T) {
	btns := []InlineBtn{
		{Text: "A", Unique: "pick", Data: "a"},
		{Text: "B", Unique: "pick", Data: "b"},
		{Text: "C", Unique: "pick", Data: "c"},
	}
	markup := InlineButtonsNPerRow(btns, 2)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "B", markup.InlineKeyboard[0][1].Text)
	assert.Equal(t, "pick", markup.InlineKeyboard[1][0].Unique)
	assert.Equal(t, "c", markup.InlineKeyboard[1][0].Data)

	assert.Len(t, InlineButtons(btns).InlineKeyboard, 3)
}

func TestReplyButtons(t *testing.T) {
	markup := ReplyButtons([]string{"Search", "Profile"}, []string{"Premium"})
	assert.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.ReplyKeyboard, 2)
	assert.Equal(t, "Profile", markup.ReplyKeyboard[0][1].Text)
	assert.True(t, RemoveKeyboard().RemoveKeyboard)
}
