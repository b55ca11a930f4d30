package adapter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "blastbot/internal/transport"
)

func TestSplitTelegramTextShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitTelegramText("hello", 10, ""))
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitTelegramText(text, 10, "")
	assert.Equal(t, []string{"aaaaaa", "bbbbbb"}, got)
}

func TestSplitTelegramTextAvoidsHTMLTags(t *testing.T) {
	text := "abcdef<b>bold</b>"
	got := splitTelegramText(text, 8, "HTML")
	require.NotEmpty(t, got)
	assert.Equal(t, "abcdef", got[0])
	assert.Equal(t, text, strings.Join(got, ""))
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, markup(nil))

	rm := markup([][]kit.Button{
		{{Text: "help", Data: "start:help"}},
		{{Text: "channel", URL: "https://t.me/x"}, {Text: "group", URL: "https://t.me/y"}},
	})
	require.NotNil(t, rm)
	require.Len(t, rm.InlineKeyboard, 2)
	assert.Equal(t, "start:help", rm.InlineKeyboard[0][0].Data)
	assert.Equal(t, "https://t.me/y", rm.InlineKeyboard[1][1].URL)
}
