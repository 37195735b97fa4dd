package echo

// framer splits the byte stream of one connection into payloads.
//
// Frames passed to emit are only valid for the duration of the call; the
// caller copies what it keeps.
type framer interface {
	feed(data []byte, emit func(frame []byte))

	// flush emits buffered bytes that never saw a terminator. Called once,
	// when the peer closes the connection.
	flush(emit func(frame []byte))
}

func newFramer(mode string, maxLineLength int) framer {
	if mode == FramingChunked {
		return chunkFramer{}
	}
	return &lineFramer{maxLen: maxLineLength}
}

// chunkFramer emits every read as one frame.
type chunkFramer struct{}

func (chunkFramer) feed(data []byte, emit func([]byte)) {
	if len(data) > 0 {
		emit(data)
	}
}

func (chunkFramer) flush(func([]byte)) {}

// lineFramer emits one frame per line, terminated by \n, \r or \r\n.
type lineFramer struct {
	partial []byte
	maxLen  int

	// skipLF is set after a \r terminator so a following \n, possibly in
	// the next read, is not taken as an empty line.
	skipLF bool
}

func (f *lineFramer) feed(data []byte, emit func([]byte)) {
	start := 0
	for i, b := range data {
		if f.skipLF {
			f.skipLF = false
			if b == '\n' {
				start = i + 1
				continue
			}
		}
		if b != '\n' && b != '\r' {
			continue
		}

		if len(f.partial) == 0 {
			emit(data[start:i])
		} else {
			f.partial = append(f.partial, data[start:i]...)
			emit(f.partial)
			f.partial = f.partial[:0]
		}
		start = i + 1
		f.skipLF = b == '\r'
	}

	if start < len(data) {
		f.partial = append(f.partial, data[start:]...)
	}
	if f.maxLen > 0 && len(f.partial) >= f.maxLen {
		emit(f.partial)
		f.partial = f.partial[:0]
	}

	// Do not pin a large backing array after a long line.
	if len(f.partial) == 0 && cap(f.partial) > 4096 {
		f.partial = nil
	}
}

func (f *lineFramer) flush(emit func([]byte)) {
	if len(f.partial) > 0 {
		emit(f.partial)
	}
	f.partial = nil
	f.skipLF = false
}
