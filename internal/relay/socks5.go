package relay

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
)

const (
	socksVersion = 0x05

	cmdConnect = 0x01

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04

	repSuccess              = 0x00
	repGeneralFailure       = 0x01
	repHostUnreachable      = 0x04
	repCommandNotSupported  = 0x07
	repAddrTypeNotSupported = 0x08
)

// handshakeWithClient performs the server side of the SOCKS5
// negotiation: method selection (no-auth only) followed by the
// request. It returns the requested command and target address.
func handshakeWithClient(conn net.Conn, reader *bufio.Reader) (byte, string, error) {
	authBuf := make([]byte, 2)
	if _, err := io.ReadFull(reader, authBuf); err != nil {
		return 0, "", fmt.Errorf("failed to read auth header: %w", err)
	}
	if authBuf[0] != socksVersion {
		return 0, "", fmt.Errorf("unsupported socks version: %d", authBuf[0])
	}
	nMethods := int(authBuf[1])
	if _, err := io.CopyN(io.Discard, reader, int64(nMethods)); err != nil {
		return 0, "", fmt.Errorf("failed to discard auth methods: %w", err)
	}
	if _, err := conn.Write([]byte{socksVersion, 0x00}); err != nil {
		return 0, "", fmt.Errorf("failed to write auth response: %w", err)
	}

	reqHeader := make([]byte, 4)
	if _, err := io.ReadFull(reader, reqHeader); err != nil {
		return 0, "", fmt.Errorf("failed to read request header: %w", err)
	}

	cmd, addrType := reqHeader[1], reqHeader[3]
	var host string
	switch addrType {
	case atypIPv4:
		addrBuf := make([]byte, 4)
		if _, err := io.ReadFull(reader, addrBuf); err != nil {
			return 0, "", fmt.Errorf("failed to read IPv4 address: %w", err)
		}
		host = net.IP(addrBuf).String()
	case atypDomain:
		lenBuf := make([]byte, 1)
		if _, err := io.ReadFull(reader, lenBuf); err != nil {
			return 0, "", fmt.Errorf("failed to read domain length: %w", err)
		}
		addrBuf := make([]byte, lenBuf[0])
		if _, err := io.ReadFull(reader, addrBuf); err != nil {
			return 0, "", fmt.Errorf("failed to read domain: %w", err)
		}
		host = string(addrBuf)
	case atypIPv6:
		addrBuf := make([]byte, 16)
		if _, err := io.ReadFull(reader, addrBuf); err != nil {
			return 0, "", fmt.Errorf("failed to read IPv6 address: %w", err)
		}
		host = net.IP(addrBuf).String()
	default:
		writeReply(conn, repAddrTypeNotSupported)
		return 0, "", fmt.Errorf("unsupported address type: %d", addrType)
	}

	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(reader, portBuf); err != nil {
		return 0, "", fmt.Errorf("failed to read port: %w", err)
	}
	port := binary.BigEndian.Uint16(portBuf)

	return cmd, net.JoinHostPort(host, strconv.Itoa(int(port))), nil
}

// writeReply sends a SOCKS5 reply with a zero bind address.
func writeReply(conn net.Conn, rep byte) error {
	_, err := conn.Write([]byte{socksVersion, rep, 0x00, atypIPv4, 0, 0, 0, 0, 0, 0})
	return err
}
