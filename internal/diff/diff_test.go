package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlain_Identical(t *testing.T) {
	assert.Empty(t, Plain("a.txt", []byte("same\n"), []byte("same\n")))
}

func TestPlain_Insertion(t *testing.T) {
	old := "source 'https://rubygems.org'\ngem 'rails'\n"
	newer := "source 'https://rubygems.org'\ngem 'rails'\ngem 'devise'\n"

	got := Plain("Gemfile", []byte(old), []byte(newer))

	assert.Contains(t, got, "--- a/Gemfile\n+++ b/Gemfile\n")
	assert.Contains(t, got, "@@ -1,2 +1,3 @@")
	assert.Contains(t, got, "+gem 'devise'\n")
	assert.Contains(t, got, " gem 'rails'\n")
}

func TestPlain_Removal(t *testing.T) {
	old := "a\nb\nc\n"
	newer := "a\nc\n"

	got := Plain("f", []byte(old), []byte(newer))

	assert.Contains(t, got, "-b\n")
	assert.NotContains(t, got, "\n+a\n")
	assert.NotContains(t, got, "\n+c\n")
}

func TestPlain_SeparateHunks(t *testing.T) {
	var a, b []string
	for i := 1; i <= 30; i++ {
		a = append(a, fmt.Sprintf("line %d", i))
		b = append(b, fmt.Sprintf("line %d", i))
	}
	b[1] = "changed 2"
	b[25] = "changed 26"

	got := Plain("f", []byte(strings.Join(a, "\n")+"\n"), []byte(strings.Join(b, "\n")+"\n"))

	assert.Equal(t, 2, strings.Count(got, "@@ -"), got)
	assert.Contains(t, got, "-line 2\n+changed 2\n")
	assert.Contains(t, got, "-line 26\n+changed 26\n")
}

func TestPlain_CloseChangesShareHunk(t *testing.T) {
	a := "1\n2\n3\n4\n5\n6\n7\n"
	b := "1\nX\n3\n4\nY\n6\n7\n"

	got := Plain("f", []byte(a), []byte(b))

	assert.Equal(t, 1, strings.Count(got, "@@ -"), got)
}

func TestPlain_Binary(t *testing.T) {
	got := Plain("logo.png", []byte{0x89, 0x00, 0x01}, []byte{0x89, 0x00, 0x02})
	assert.Equal(t, "Binary file logo.png differs\n", got)
}

func TestRender_TruncatesLongLines(t *testing.T) {
	long := strings.Repeat("x", 200)

	got := Render("f", []byte(""), []byte(long+"\n"), Options{Width: 40})

	assert.Contains(t, got, "...")
	assert.NotContains(t, got, long)
}

func TestEditScript(t *testing.T) {
	edits := editScript([]string{"a", "b", "c"}, []string{"a", "x", "c"})

	var ops []op
	for _, e := range edits {
		ops = append(ops, e.op)
	}
	assert.Equal(t, []op{opEqual, opDel, opAdd, opEqual}, ops)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb"))
	assert.Equal(t, []string{"a", "", "b"}, splitLines("a\n\nb\n"))
}
