// Package testutil provides shared test utilities and fixtures.
//
// It holds the HTTP helpers used by the debug route tests and the byte-stream
// builders used to feed the frame synchronizer.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/mindflex/internal/thinkgear"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// LocalhostRequest creates a test request that appears to come from
// localhost, which tsweb's debug access check requires.
func LocalhostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// Concat joins byte chunks into one stream.
func Concat(chunks ...[]byte) []byte {
	var n int
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Frames encodes each payload as a wire frame and concatenates them.
func Frames(payloads ...[]byte) []byte {
	chunks := make([][]byte, len(payloads))
	for i, p := range payloads {
		chunks[i] = thinkgear.MustEncodeFrame(p)
	}
	return Concat(chunks...)
}

// CorruptByte returns a copy of b with the byte at i inverted.
func CorruptByte(b []byte, i int) []byte {
	out := append([]byte(nil), b...)
	out[i] ^= 0xFF
	return out
}

// ChunkBy splits b into pieces of at most n bytes, to simulate short reads.
func ChunkBy(b []byte, n int) [][]byte {
	if n <= 0 {
		n = 1
	}
	var chunks [][]byte
	for len(b) > n {
		chunks = append(chunks, b[:n:n])
		b = b[n:]
	}
	if len(b) > 0 {
		chunks = append(chunks, b)
	}
	return chunks
}
