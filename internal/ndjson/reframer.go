package ndjson

import "bytes"

// reframer turns arbitrarily chunked bytes into delimiter separated lines.
// It owns buf exclusively; lines it returns alias buf and are only valid until
// the next push.
type reframer struct {
	buf   []byte
	start int // first byte of the frame in progress
	scan  int // first byte not yet searched for a delimiter
}

// push appends chunk, discarding bytes of frames already handed out.
func (r *reframer) push(chunk []byte) {
	if r.start > 0 {
		n := copy(r.buf, r.buf[r.start:])
		r.buf = r.buf[:n]
		r.scan -= r.start
		r.start = 0
	}
	r.buf = append(r.buf, chunk...)
}

// next returns the next complete line without its delimiter. The second
// result is false when the buffered bytes hold no further delimiter.
func (r *reframer) next() ([]byte, bool) {
	i := bytes.IndexByte(r.buf[r.scan:], Delimiter)
	if i < 0 {
		r.scan = len(r.buf)
		return nil, false
	}
	end := r.scan + i
	line := r.buf[r.start:end]
	r.start = end + 1
	r.scan = r.start
	return line, true
}

// pending is the length of the unterminated frame in progress.
func (r *reframer) pending() int {
	return len(r.buf) - r.start
}

// tail returns the unterminated bytes left at end of stream.
func (r *reframer) tail() []byte {
	return r.buf[r.start:]
}

// trimCR strips a single carriage return preceding the delimiter.
func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

func isBlank(line []byte) bool {
	return len(bytes.TrimSpace(line)) == 0
}
