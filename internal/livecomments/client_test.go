package livecomments

import (
	"bufio"
	"net"
	"testing"
)

func newPipeClient(t *testing.T) *client {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() { _ = peer.Close() })
	return &client{
		conn:  &Conn{raw: server, reader: bufio.NewReader(server), writer: bufio.NewWriter(server)},
		send:  make(chan outboundMessage, 1),
		rooms: make(map[string]struct{}),
	}
}

func TestClientEnqueueAfterClose(t *testing.T) {
	c := newPipeClient(t)
	c.close()

	// Neither path may panic once the send channel is closed.
	if c.enqueue(outboundMessage{Raw: []byte(`{}`)}) {
		t.Fatal("enqueue should report failure after close")
	}
	c.sendError("too late")

	if _, ok := <-c.send; ok {
		t.Fatal("send channel should be closed and drained")
	}
}

func TestClientEnqueueDropsWhenBufferFull(t *testing.T) {
	c := newPipeClient(t)
	defer c.close()

	if !c.enqueue(outboundMessage{Raw: []byte(`{"type":"ack"}`)}) {
		t.Fatal("first enqueue should succeed")
	}
	if c.enqueue(outboundMessage{Raw: []byte(`{"type":"ack"}`)}) {
		t.Fatal("enqueue should drop when the buffer is full")
	}
}
