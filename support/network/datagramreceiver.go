// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package network

import (
	"io"
	"net"
)

// DatagramReceiver exposes an interface which receives individual datagrams.
type DatagramReceiver interface {
	io.Closer

	// ReceiveDatagram blocks until a datagram is received, and copies it into
	// buf. It returns the size of the datagram and its source address.
	//
	// If buf is too small, the datagram is truncated.
	ReceiveDatagram(buf []byte) (int, net.Addr, error)

	// LocalAddr returns the local address that datagrams are received on.
	LocalAddr() net.Addr
}

// udpConn models the subset of *net.UDPConn used by UDPDatagramReceiver.
type udpConn interface {
	io.Closer
	LocalAddr() net.Addr
	SetReadBuffer(int) error
	ReadFromUDP([]byte) (int, *net.UDPAddr, error)
}

// UDPDatagramReceiver returns a DatagramReceiver that reads from conn.
//
// UDPDatagramReceiver takes ownership of conn, and will close it when Close is
// called. The connection's read buffer is raised to hold at least one maximum
// size datagram; failure to do so is not fatal.
func UDPDatagramReceiver(conn *net.UDPConn) DatagramReceiver {
	return newUDPDatagramReceiver(conn)
}

func newUDPDatagramReceiver(conn udpConn) *udpDatagramReceiver {
	_ = conn.SetReadBuffer(MaxUDPSize)
	return &udpDatagramReceiver{conn}
}

type udpDatagramReceiver struct {
	conn udpConn
}

func (udr *udpDatagramReceiver) ReceiveDatagram(buf []byte) (int, net.Addr, error) {
	amt, addr, err := udr.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, err
	}
	return amt, addr, nil
}

func (udr *udpDatagramReceiver) LocalAddr() net.Addr { return udr.conn.LocalAddr() }
func (udr *udpDatagramReceiver) Close() error        { return udr.conn.Close() }
