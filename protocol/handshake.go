// File: protocol/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket opening handshake: request validation, Sec-WebSocket-Accept
// computation and response serialization on top of a framed HTTP header
// block.

package protocol

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/momentics/hioload-net/api"
)

const (
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	MaxHandshakeHeadersSize  = 8192
	HeaderConnection         = "Connection"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"
	RequiredWebSocketVersion = "13"
)

var (
	ErrInvalidUpgradeHeaders = fmt.Errorf("invalid WebSocket upgrade headers")
	ErrMissingWebSocketKey   = fmt.Errorf("missing Sec-WebSocket-Key header")
	ErrBadWebSocketVersion   = fmt.Errorf("unsupported WebSocket version; only '13' is supported")
	ErrBadAcceptKey          = fmt.Errorf("websocket accept key mismatch")
)

// AcceptKey computes Sec-WebSocket-Accept for a client key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Upgrade validates an HTTP upgrade request header block, switches s to
// WebSocket framing and returns the 101 response to send back.
func Upgrade(s api.Session, request []byte) ([]byte, error) {
	if len(request) > MaxHandshakeHeadersSize {
		return nil, fmt.Errorf("handshake headers too large")
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(request)))
	if err != nil {
		return nil, fmt.Errorf("handshake read request: %w", err)
	}
	if req.Method != http.MethodGet {
		return nil, fmt.Errorf("%w: method %s", ErrInvalidUpgradeHeaders, req.Method)
	}
	if !headerContainsToken(req.Header, HeaderConnection, "Upgrade") ||
		!headerContainsToken(req.Header, HeaderUpgrade, "websocket") {
		return nil, ErrInvalidUpgradeHeaders
	}
	if req.Header.Get(HeaderSecWebSocketVer) != RequiredWebSocketVersion {
		return nil, ErrBadWebSocketVersion
	}
	key := req.Header.Get(HeaderSecWebSocketKey)
	if key == "" {
		return nil, ErrMissingWebSocketKey
	}
	s.SetAttribute(api.AttrWebSocket, true)

	var b bytes.Buffer
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString(HeaderSecWebSocketAccept + ": " + AcceptKey(key) + "\r\n\r\n")
	return b.Bytes(), nil
}

// RejectResponse is the reply to a failed upgrade.
func RejectResponse(err error) []byte {
	body := err.Error()
	return []byte(fmt.Sprintf("HTTP/1.1 400 Bad Request\r\nContent-Type: text/plain\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(body), body))
}

// NewUpgradeRequest builds a client upgrade request and returns it with the
// generated key.
func NewUpgradeRequest(host, path string) ([]byte, string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, "", err
	}
	key := base64.StdEncoding.EncodeToString(nonce[:])
	if path == "" {
		path = "/"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderSecWebSocketKey, key)
	fmt.Fprintf(&b, "%s: %s\r\n\r\n", HeaderSecWebSocketVer, RequiredWebSocketVersion)
	return b.Bytes(), key, nil
}

// CompleteUpgrade checks a server response against key and switches s to
// WebSocket framing on success.
func CompleteUpgrade(s api.Session, response []byte, key string) error {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(response)), nil)
	if err != nil {
		return fmt.Errorf("handshake read response: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return fmt.Errorf("%w: status %d", ErrInvalidUpgradeHeaders, resp.StatusCode)
	}
	if !headerContainsToken(resp.Header, HeaderUpgrade, "websocket") {
		return ErrInvalidUpgradeHeaders
	}
	if resp.Header.Get(HeaderSecWebSocketAccept) != AcceptKey(key) {
		return ErrBadAcceptKey
	}
	s.SetAttribute(api.AttrWebSocket, true)
	return nil
}

// headerContainsToken reports whether headerName lists token.
func headerContainsToken(h http.Header, headerName, token string) bool {
	for _, v := range h[http.CanonicalHeaderKey(headerName)] {
		for _, p := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(p), token) {
				return true
			}
		}
	}
	return false
}
