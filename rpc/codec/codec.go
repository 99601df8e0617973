package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	// MaxHeaderSize bounds the length header of a request frame
	MaxHeaderSize = 64 * 1024
	// MaxPrealloc bounds the buffer reserved up front for a declared length,
	// larger bodies grow as their bytes arrive
	MaxPrealloc = 1024 * 1024
	// maxLengthDigits bounds the decimal length prefix of a response
	maxLengthDigits = 18
)

var (
	// ErrMalformedFrame is returned when a header cannot be parsed into declared lengths
	ErrMalformedFrame = errors.New("malformed frame")

	// nullBody is the reply drivers send when a resource does not exist
	nullBody = []byte("null")
)

// --------------------------------------------------------------------------
// Request frames
// --------------------------------------------------------------------------

// Encode serializes the arguments into a text frame with the format:
//
//	{len-0}/{len-1}/.../{len-n}\n{body-0}{body-1}...{body-n}
//
// All lengths are byte lengths of the canonical string form (see Format).
func Encode(args ...any) []byte {
	bodies := make([][]byte, len(args))
	for i, arg := range args {
		bodies[i] = formatBytes(arg)
	}
	return encodeSegments(bodies)
}

// EncodePush serializes a file push with the format:
//
//	{len(tag)}/{len(path)}/{len(payload)}\n{tag}{path}{payload}
//
// The payload is opaque, it is never converted to a string.
func EncodePush(tag, path string, payload []byte) []byte {
	return encodeSegments([][]byte{[]byte(tag), []byte(path), payload})
}

// encodeSegments writes the length header followed by all segment bodies
func encodeSegments(segments [][]byte) []byte {
	size := 1
	for _, s := range segments {
		size += len(s) + 21
	}

	buf := make([]byte, 0, size)
	for i, s := range segments {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = strconv.AppendInt(buf, int64(len(s)), 10)
	}
	buf = append(buf, '\n')
	for _, s := range segments {
		buf = append(buf, s...)
	}
	return buf
}

// DecodeRequest splits a complete request frame into its segments.
// It is the inverse of Encode and EncodePush.
func DecodeRequest(frame []byte) ([][]byte, error) {
	segments, err := ReadRequest(bufio.NewReader(bytes.NewReader(frame)))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated frame", ErrMalformedFrame)
		}
		return nil, err
	}
	return segments, nil
}

// ReadRequest reads exactly one request frame from r. Segment boundaries are
// recovered from the declared lengths only, so bodies may contain '/' and '\n'.
func ReadRequest(r *bufio.Reader) ([][]byte, error) {
	header, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}

	lengths, err := parseLengths(header)
	if err != nil {
		return nil, err
	}

	segments := make([][]byte, len(lengths))
	for i, n := range lengths {
		var seg bytes.Buffer
		seg.Grow(min(n, MaxPrealloc))
		if _, err := io.CopyN(&seg, r, int64(n)); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		segments[i] = seg.Bytes()
	}
	return segments, nil
}

// readHeaderLine reads up to (excluding) the first '\n'
func readHeaderLine(r *bufio.Reader) ([]byte, error) {
	var header []byte
	for {
		chunk, err := r.ReadSlice('\n')
		header = append(header, chunk...)
		if len(header) > MaxHeaderSize {
			return nil, fmt.Errorf("%w: header exceeds %d bytes", ErrMalformedFrame, MaxHeaderSize)
		}
		if err == nil {
			return header[:len(header)-1], nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(header) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
}

// parseLengths parses "L1/L2/.../Ln", an empty header means zero segments
func parseLengths(header []byte) ([]int, error) {
	if len(header) == 0 {
		return nil, nil
	}

	fields := bytes.Split(header, []byte{'/'})
	lengths := make([]int, len(fields))
	for i, f := range fields {
		n, err := parseLength(f)
		if err != nil {
			return nil, err
		}
		lengths[i] = n
	}
	return lengths, nil
}

// parseLength parses a non-negative decimal length
func parseLength(b []byte) (int, error) {
	if len(b) == 0 || len(b) > maxLengthDigits {
		return 0, fmt.Errorf("%w: invalid length %q", ErrMalformedFrame, b)
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: invalid length %q", ErrMalformedFrame, b)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// --------------------------------------------------------------------------
// Response frames
// --------------------------------------------------------------------------

// EncodeResponse serializes a reply with the format {len}/{body}
func EncodeResponse(body []byte) []byte {
	buf := make([]byte, 0, len(body)+21)
	buf = strconv.AppendInt(buf, int64(len(body)), 10)
	buf = append(buf, '/')
	return append(buf, body...)
}

// DecodeResponse splits the start of a reply at the first '/'. It returns the
// declared body length and the body bytes received so far, which may be shorter
// (more reads needed) or longer (surplus belongs to the next reply) than declared.
func DecodeResponse(raw []byte) (int, []byte, error) {
	idx := bytes.IndexByte(raw, '/')
	if idx < 0 {
		return 0, nil, fmt.Errorf("%w: no length delimiter in %q", ErrMalformedFrame, truncate(raw, 32))
	}
	n, err := parseLength(raw[:idx])
	if err != nil {
		return 0, nil, err
	}
	return n, raw[idx+1:], nil
}

// ResponseHeaderComplete reports whether raw holds a full length prefix.
// It fails early once raw can no longer become a valid prefix.
func ResponseHeaderComplete(raw []byte) (bool, error) {
	for i, c := range raw {
		if c == '/' {
			if i == 0 {
				return false, fmt.Errorf("%w: empty length", ErrMalformedFrame)
			}
			return true, nil
		}
		if c < '0' || c > '9' || i >= maxLengthDigits {
			return false, fmt.Errorf("%w: invalid length prefix %q", ErrMalformedFrame, truncate(raw, 32))
		}
	}
	return false, nil
}

// IsNull reports whether a reply body is the "resource absent" sentinel
func IsNull(body []byte) bool {
	return bytes.Equal(body, nullBody)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
