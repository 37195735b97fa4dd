package echo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(f framer, reads ...string) []string {
	var out []string
	emit := func(frame []byte) { out = append(out, string(frame)) }
	for _, r := range reads {
		f.feed([]byte(r), emit)
	}
	return out
}

func TestLineFramer(t *testing.T) {
	tests := []struct {
		name  string
		reads []string
		want  []string
	}{
		{name: "single line", reads: []string{"hello\n"}, want: []string{"hello"}},
		{name: "line split across reads", reads: []string{"abc", "def\n"}, want: []string{"abcdef"}},
		{name: "several lines in one read", reads: []string{"a\nb\nc\n"}, want: []string{"a", "b", "c"}},
		{name: "crlf", reads: []string{"a\r\nb\r\n"}, want: []string{"a", "b"}},
		{name: "bare cr", reads: []string{"a\rb\r"}, want: []string{"a", "b"}},
		{name: "crlf split across reads", reads: []string{"a\r", "\nb\n"}, want: []string{"a", "b"}},
		{name: "cr then cr", reads: []string{"a\r\rb\n"}, want: []string{"a", "", "b"}},
		{name: "empty lines", reads: []string{"\n\n"}, want: []string{"", ""}},
		{name: "partial kept", reads: []string{"abc"}, want: nil},
		{name: "mixed terminators", reads: []string{"a\nb\rc\r\nd"}, want: []string{"a", "b", "c"}},
		{name: "lf after crlf is a new empty line", reads: []string{"a\r\n\n"}, want: []string{"a", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(newFramer(FramingLine, 1024), tt.reads...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLineFramer_FlushEmitsTrailingPartial(t *testing.T) {
	f := newFramer(FramingLine, 1024)

	var out []string
	emit := func(frame []byte) { out = append(out, string(frame)) }

	f.feed([]byte("one\ntwo"), emit)
	f.flush(emit)
	f.flush(emit)

	assert.Equal(t, []string{"one", "two"}, out)
}

func TestLineFramer_MaxLineLength(t *testing.T) {
	got := collect(newFramer(FramingLine, 4), "abcdef", "gh\n")
	assert.Equal(t, []string{"abcdef", "gh"}, got)

	got = collect(newFramer(FramingLine, 4), "ab", "c", "d", "e\n")
	assert.Equal(t, []string{"abcd", "e"}, got)
}

func TestLineFramer_FramesDoNotAliasLaterReads(t *testing.T) {
	f := newFramer(FramingLine, 1024)

	var out []string
	emit := func(frame []byte) { out = append(out, string(frame)) }

	buf := []byte("abc")
	f.feed(buf, emit)
	copy(buf, "xyz")
	f.feed([]byte("\n"), emit)

	assert.Equal(t, []string{"abc"}, out)
}

func TestChunkFramer(t *testing.T) {
	got := collect(newFramer(FramingChunked, 0), "abc", "de\nf", "")
	assert.Equal(t, []string{"abc", "de\nf"}, got)

	var flushed []string
	newFramer(FramingChunked, 0).flush(func(b []byte) { flushed = append(flushed, string(b)) })
	assert.Empty(t, flushed)
}
