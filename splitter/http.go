// File: splitter/http.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP header block boundary detection. Bodies are not accounted for.

package splitter

import (
	"bytes"
	"fmt"

	"github.com/momentics/hioload-net/api"
)

// DefaultMaxHeaderBytes bounds the header block the HTTP splitter waits for.
const DefaultMaxHeaderBytes = 8 << 10

var (
	headerEnd = []byte("\r\n\r\n")
	crlf      = []byte("\r\n")
	httpToken = []byte("HTTP")
)

var _ api.FrameObserver = (*httpHeader)(nil)

type httpHeader struct {
	max      int
	ws       api.Splitter
	switched bool
}

// HTTP splits at the end of an HTTP request or response header block.
// Once the session carries the api.AttrWebSocket attribute, or once a
// WebSocket upgrade request or a 101 response was consumed, it splits
// WebSocket frames instead. The switch happens in Framed on the read path,
// so frames pipelined behind the handshake in the same read are split
// correctly. Each session needs its own instance.
func HTTP(maxHeaderBytes int) api.Splitter {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}
	return &httpHeader{max: maxHeaderBytes, ws: WebSocket()}
}

func (h *httpHeader) TrySplit(s api.Session, buf api.BufferView) api.SplitResult {
	if h.switched {
		return h.ws.TrySplit(s, buf)
	}
	if s != nil {
		if v, ok := s.Attribute(api.AttrWebSocket); ok && v == true {
			return h.ws.TrySplit(s, buf)
		}
	}
	b := buf.Peek(-1)
	eol := bytes.Index(b, crlf)
	if eol < 0 {
		if len(b) > h.max {
			return api.Invalid(fmt.Errorf("%w: request line exceeds %d bytes", api.ErrInvalidFrame, h.max))
		}
		return api.Insufficient()
	}
	if !isHTTPStartLine(b[:eol]) {
		return api.Invalid(fmt.Errorf("%w: not an HTTP start line", api.ErrInvalidFrame))
	}
	end := bytes.Index(b, headerEnd)
	if end < 0 {
		if len(b) > h.max {
			return api.Invalid(fmt.Errorf("%w: header block exceeds %d bytes", api.ErrInvalidFrame, h.max))
		}
		return api.Insufficient()
	}
	if end+len(headerEnd) > h.max {
		return api.Invalid(fmt.Errorf("%w: header block exceeds %d bytes", api.ErrInvalidFrame, h.max))
	}
	return api.FrameOf(end + len(headerEnd))
}

// Framed switches to WebSocket framing once the consumed header block was
// an upgrade request or a 101 response.
func (h *httpHeader) Framed(_ api.Session, frame []byte) {
	if !h.switched && isWebSocketUpgrade(frame) {
		h.switched = true
	}
}

var (
	upgradeHeader = []byte("upgrade:")
	websocketTok  = []byte("websocket")
	status101     = []byte("HTTP/1.1 101")
	getMethod     = []byte("GET ")
)

// isWebSocketUpgrade reports whether block is a GET carrying
// "Upgrade: websocket" or a 101 response.
func isWebSocketUpgrade(block []byte) bool {
	if !bytes.HasPrefix(block, status101) && !bytes.HasPrefix(block, getMethod) {
		return false
	}
	for _, l := range bytes.Split(block, crlf)[1:] {
		if len(l) < len(upgradeHeader) || !bytes.EqualFold(l[:len(upgradeHeader)], upgradeHeader) {
			continue
		}
		if bytes.Contains(bytes.ToLower(l[len(upgradeHeader):]), websocketTok) {
			return true
		}
	}
	return false
}

// isHTTPStartLine accepts status lines ("HTTP/1.1 200 OK") and request lines
// ending in a protocol version ("GET / HTTP/1.1").
func isHTTPStartLine(line []byte) bool {
	if bytes.HasPrefix(line, httpToken) {
		return true
	}
	sp := bytes.LastIndexByte(line, ' ')
	if sp < 0 {
		return false
	}
	return bytes.HasPrefix(line[sp+1:], []byte("HTTP/"))
}
