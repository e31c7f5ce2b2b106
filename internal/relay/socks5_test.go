package relay

import (
	"bufio"
	"io"
	"net"
	"testing"
)

func TestHandshakeRejectsWrongVersion(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		client.Write([]byte{0x04, 0x01, 0x00})
	}()

	if _, _, err := handshakeWithClient(server, bufio.NewReader(server)); err == nil {
		t.Error("SOCKS4 greeting accepted")
	}
}

func TestHandshakeRejectsUnknownAddressType(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	reply := make(chan byte, 1)
	go func() {
		client.Write([]byte{0x05, 0x01, 0x00})
		buf := make([]byte, 2)
		if _, err := io.ReadFull(client, buf); err != nil {
			return
		}
		// Address type 0x05 does not exist.
		client.Write([]byte{0x05, 0x01, 0x00, 0x05, 1, 2, 3, 4, 0, 80})
		rep := make([]byte, 10)
		if _, err := io.ReadFull(client, rep); err != nil {
			return
		}
		reply <- rep[1]
	}()

	if _, _, err := handshakeWithClient(server, bufio.NewReader(server)); err == nil {
		t.Error("unknown address type accepted")
	}
	if rep := <-reply; rep != repAddrTypeNotSupported {
		t.Errorf("reply code = %#x, want address type not supported", rep)
	}
}

func TestHandshakeParsesDomainRequest(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		client.Write([]byte{0x05, 0x02, 0x00, 0x01})
		buf := make([]byte, 2)
		if _, err := io.ReadFull(client, buf); err != nil {
			return
		}
		req := []byte{0x05, 0x01, 0x00, 0x03, 11}
		req = append(req, "example.com"...)
		req = append(req, 0x01, 0xBB)
		client.Write(req)
	}()

	cmd, target, err := handshakeWithClient(server, bufio.NewReader(server))
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if cmd != cmdConnect {
		t.Errorf("cmd = %#x, want connect", cmd)
	}
	if target != "example.com:443" {
		t.Errorf("target = %q, want example.com:443", target)
	}
}

func TestHandshakeParsesIPv4Request(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		client.Write([]byte{0x05, 0x01, 0x00})
		buf := make([]byte, 2)
		if _, err := io.ReadFull(client, buf); err != nil {
			return
		}
		client.Write([]byte{0x05, 0x01, 0x00, 0x01, 1, 2, 3, 4, 0x1F, 0x90})
	}()

	_, target, err := handshakeWithClient(server, bufio.NewReader(server))
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if target != "1.2.3.4:8080" {
		t.Errorf("target = %q, want 1.2.3.4:8080", target)
	}
}
