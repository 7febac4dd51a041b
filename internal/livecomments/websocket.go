package livecomments

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// handshakeGUID is fixed by RFC 6455 section 1.3.
const handshakeGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const (
	frameText  byte = 0x1
	frameClose byte = 0x8
	framePing  byte = 0x9
	framePong  byte = 0xA
)

// ErrNotWebSocket is returned by Upgrade when the request is not a valid
// WebSocket handshake.
var ErrNotWebSocket = errors.New("not a websocket handshake")

// Conn is a minimal WebSocket connection carrying JSON text frames. It
// answers pings and treats close frames as EOF; fragmented messages and
// extensions are not supported.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	writeMu sync.Mutex
	closed  bool
	// client connections must mask outbound frames, servers must not
	maskOutbound bool
}

// Upgrade completes the server side of the WebSocket handshake by hijacking
// the HTTP connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	if !tokenListContains(r.Header, "Connection", "upgrade") || !tokenListContains(r.Header, "Upgrade", "websocket") {
		return nil, ErrNotWebSocket
	}
	if r.Header.Get("Sec-WebSocket-Version") != "13" {
		return nil, fmt.Errorf("%w: unsupported version", ErrNotWebSocket)
	}
	key := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return nil, fmt.Errorf("%w: missing key", ErrNotWebSocket)
	}
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, errors.New("response writer does not support hijacking")
	}
	raw, rw, err := hijacker.Hijack()
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Accept: " + acceptToken(key) + "\r\n\r\n")
	if _, err := rw.WriteString(b.String()); err != nil {
		raw.Close()
		return nil, err
	}
	if err := rw.Flush(); err != nil {
		raw.Close()
		return nil, err
	}
	return &Conn{raw: raw, reader: rw.Reader, writer: rw.Writer}, nil
}

// Dial opens a client WebSocket connection. It exists for tests and local
// tooling and only supports plain ws:// URLs.
func Dial(ctx context.Context, rawURL string, header http.Header) (*Conn, error) {
	addr, path, host, err := splitWSURL(rawURL)
	if err != nil {
		return nil, err
	}
	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		raw.Close()
		return nil, err
	}
	key := base64.StdEncoding.EncodeToString(nonce)

	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	b.WriteString("Connection: Upgrade\r\nUpgrade: websocket\r\nSec-WebSocket-Version: 13\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", key)
	for name, values := range header {
		for _, value := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", name, value)
		}
	}
	b.WriteString("\r\n")
	if _, err := io.WriteString(raw, b.String()); err != nil {
		raw.Close()
		return nil, err
	}

	reader := bufio.NewReader(raw)
	status, err := reader.ReadString('\n')
	if err != nil {
		raw.Close()
		return nil, err
	}
	if !strings.Contains(status, " 101 ") {
		raw.Close()
		return nil, fmt.Errorf("websocket handshake rejected: %s", strings.TrimSpace(status))
	}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			raw.Close()
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			break
		}
	}
	return &Conn{raw: raw, reader: reader, writer: bufio.NewWriter(raw), maskOutbound: true}, nil
}

func splitWSURL(rawURL string) (addr, path, host string, err error) {
	rest, ok := strings.CutPrefix(rawURL, "ws://")
	if !ok {
		return "", "", "", fmt.Errorf("unsupported websocket url %q", rawURL)
	}
	host, path, found := strings.Cut(rest, "/")
	if found {
		path = "/" + path
	} else {
		path = "/"
	}
	addr = host
	if !strings.Contains(addr, ":") {
		addr += ":80"
	}
	return addr, path, host, nil
}

func tokenListContains(header http.Header, name, token string) bool {
	for _, value := range header.Values(name) {
		for _, part := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

func acceptToken(key string) string {
	sum := sha1.Sum([]byte(key + handshakeGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ReadMessage blocks until the next text frame arrives. Ping frames are
// answered inline; a close frame or closed connection yields io.EOF.
func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	if c.isClosed() {
		return nil, io.EOF
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.raw.SetReadDeadline(deadline)
	} else {
		_ = c.raw.SetReadDeadline(time.Time{})
	}
	for {
		opcode, payload, err := c.readFrame()
		if err != nil {
			return nil, err
		}
		switch opcode {
		case frameText:
			return payload, nil
		case framePing:
			if err := c.writeFrame(framePong, payload); err != nil {
				return nil, err
			}
		case frameClose:
			c.Close()
			return nil, io.EOF
		default:
			// binary and pong frames are ignored
		}
	}
}

// WriteText sends a single text frame.
func (c *Conn) WriteText(payload []byte) error {
	return c.writeFrame(frameText, payload)
}

// Ping sends a ping control frame.
func (c *Conn) Ping() error {
	return c.writeFrame(framePing, nil)
}

// Close shuts down the underlying connection. It is safe to call more than
// once.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.raw.Close()
}

func (c *Conn) isClosed() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.closed
}

func (c *Conn) writeFrame(opcode byte, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	header := make([]byte, 0, 14)
	header = append(header, 0x80|opcode)
	maskBit := byte(0)
	if c.maskOutbound {
		maskBit = 0x80
	}
	switch n := len(payload); {
	case n < 126:
		header = append(header, maskBit|byte(n))
	case n <= 0xFFFF:
		header = append(header, maskBit|126)
		header = binary.BigEndian.AppendUint16(header, uint16(n))
	default:
		header = append(header, maskBit|127)
		header = binary.BigEndian.AppendUint64(header, uint64(n))
	}
	body := payload
	if c.maskOutbound {
		var key [4]byte
		if _, err := rand.Read(key[:]); err != nil {
			return err
		}
		header = append(header, key[:]...)
		body = make([]byte, len(payload))
		for i, b := range payload {
			body[i] = b ^ key[i%4]
		}
	}
	if _, err := c.writer.Write(header); err != nil {
		return err
	}
	if _, err := c.writer.Write(body); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *Conn) readFrame() (byte, []byte, error) {
	var head [2]byte
	if _, err := io.ReadFull(c.reader, head[:]); err != nil {
		return 0, nil, err
	}
	opcode := head[0] & 0x0F
	masked := head[1]&0x80 != 0
	length := uint64(head[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(c.reader, ext[:]); err != nil {
			return 0, nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(c.reader, ext[:]); err != nil {
			return 0, nil, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}
	if length > 1<<20 {
		return 0, nil, fmt.Errorf("websocket frame too large: %d bytes", length)
	}
	var key [4]byte
	if masked {
		if _, err := io.ReadFull(c.reader, key[:]); err != nil {
			return 0, nil, err
		}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.reader, payload); err != nil {
		return 0, nil, err
	}
	if masked {
		for i := range payload {
			payload[i] ^= key[i%4]
		}
	}
	return opcode, payload, nil
}
