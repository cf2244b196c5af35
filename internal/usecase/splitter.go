package usecase

import "bytes"

// LineSplitter turns a sequence of byte chunks into complete lines. It keeps
// only the trailing incomplete fragment between chunks, so memory is bounded
// by the longest single line regardless of stream size.
type LineSplitter struct {
	remainder []byte
}

// NewLineSplitter creates a splitter with an empty remainder.
func NewLineSplitter() *LineSplitter {
	return &LineSplitter{}
}

// Split consumes one chunk and returns every complete line it closes,
// delimiter stripped. A line spanning chunk boundaries is emitted once its
// terminating newline arrives.
func (s *LineSplitter) Split(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	var lines []string
	data := chunk
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := data[:idx]
		if len(s.remainder) > 0 {
			line = append(s.remainder, line...)
			s.remainder = nil
		}
		lines = append(lines, string(trimCR(line)))
		data = data[idx+1:]
	}

	if len(data) > 0 {
		s.remainder = append(s.remainder, data...)
	}
	return lines
}

// Flush returns the trailing unterminated line at end of stream, if any.
func (s *LineSplitter) Flush() (string, bool) {
	if len(s.remainder) == 0 {
		return "", false
	}
	line := string(trimCR(s.remainder))
	s.remainder = nil
	return line, true
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
