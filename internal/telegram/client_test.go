package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitByBytesKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("サムネ", 10)

	parts := splitByBytes(text, 10)
	assert.Equal(t, text, strings.Join(parts, ""))
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 10)
		assert.True(t, utf8.ValidString(p))
	}

	assert.Equal(t, []string{"short"}, splitByBytes("short", 10))
}

func TestTruncateByBytes(t *testing.T) {
	assert.Equal(t, "サム", truncateByBytes("サムネイル", 7))
	assert.Equal(t, "abc", truncateByBytes("abc", 7))
	assert.Equal(t, "abc", truncateByBytes("abc", 0))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, ".png", strings.TrimPrefix(fileName("image", "image/png"), "image"))
	assert.Equal(t, "image.jpg", fileName("image", "application/x-unknown"))
}

func TestCleanMimeType(t *testing.T) {
	assert.Equal(t, "video/mp4", cleanMimeType(" video/mp4; charset=binary"))
	assert.Equal(t, "", cleanMimeType(""))
}
