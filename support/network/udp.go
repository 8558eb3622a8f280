// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package network

import (
	"fmt"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// ResolvedConn is a resolved UDP endpoint and its associated local interface
// information.
type ResolvedConn struct {
	// Interface, if not nil, is the network interface to join multicast groups
	// on. If nil, the system chooses one.
	Interface *net.Interface

	// Addr is the address to send to or listen on.
	Addr *net.UDPAddr

	// BufferSize, if >0, is the read/write buffer size to set on new connections.
	BufferSize int
}

// ResolveUDP4 resolves address, a "host:port" string, into a ResolvedConn.
//
// If iface is not empty, it names the interface to use for multicast.
func ResolveUDP4(address, iface string) (*ResolvedConn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %q", address)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 0xFFFF {
		return nil, errors.Errorf("invalid port %q in %q", port, address)
	}

	rc := ResolvedConn{
		Addr: &net.UDPAddr{Port: portNum},
	}
	if host != "" {
		if rc.Addr.IP, err = ParseIP4Address(host); err != nil {
			ua, rerr := net.ResolveUDPAddr("udp4", address)
			if rerr != nil {
				return nil, errors.Wrapf(rerr, "could not resolve 'udp4' address from %q", address)
			}
			rc.Addr = ua
		}
	}

	if iface != "" {
		if err := rc.ResolveInterface(iface); err != nil {
			return nil, errors.Wrapf(err, "could not find interface %q", iface)
		}
	}
	return &rc, nil
}

func (rc *ResolvedConn) String() string {
	var base string
	switch {
	case rc.Interface != nil && rc.Addr != nil:
		base = fmt.Sprintf("%s on %s", rc.Addr, rc.Interface.Name)
	case rc.Interface != nil:
		base = rc.Interface.Name
	case rc.Addr != nil:
		base = rc.Addr.String()
	default:
		base = "unconfigured"
	}
	return base
}

// IsMulticast returns true if rc's address is a multicast group.
func (rc *ResolvedConn) IsMulticast() bool {
	return rc.Addr != nil && rc.Addr.IP != nil && rc.Addr.IP.IsMulticast()
}

// ResolveInterface resolves the supplied interface name into a net.Interface.
// On success, rc's Interface will be populated with the result.
func (rc *ResolvedConn) ResolveInterface(name string) error {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return err
	}
	rc.Interface = iface
	return nil
}

// DialUDP4 creates a UDP connection to rc's address.
//
// If successful, the caller is responsible for closing the connection.
func (rc *ResolvedConn) DialUDP4() (*net.UDPConn, error) {
	if rc.Addr == nil || rc.Addr.IP == nil {
		return nil, errors.New("no destination address")
	}

	conn, err := net.DialUDP("udp4", nil, rc.Addr)
	if err != nil {
		return nil, err
	}

	if rc.BufferSize > 0 {
		if err := conn.SetWriteBuffer(rc.BufferSize); err != nil {
			_ = conn.Close()
			return nil, errors.Wrapf(err, "failed to set write buffer size to %d", rc.BufferSize)
		}
	}

	return conn, nil
}

// DatagramSender is a convenience method to generate a basic DatagramSender
// from the specified connection parameters.
func (rc *ResolvedConn) DatagramSender() (DatagramSender, error) {
	conn, err := rc.DialUDP4()
	if err != nil {
		return nil, err
	}
	return UDPDatagramSender(conn), nil
}

// ListenUDP4 creates a new listening net.UDPConn on rc's address.
//
// If the address is a multicast group, the connection joins it on Interface.
// As per net.ListenMulticastUDP, leaving Interface nil is not recommended.
//
// If successful, the caller is responsible for closing the connection.
func (rc *ResolvedConn) ListenUDP4() (*net.UDPConn, error) {
	var addr net.UDPAddr
	if rc.Addr != nil {
		addr = *rc.Addr
	}

	var (
		conn *net.UDPConn
		err  error
	)
	if rc.IsMulticast() {
		conn, err = net.ListenMulticastUDP("udp4", rc.Interface, &addr)
	} else {
		conn, err = net.ListenUDP("udp4", &addr)
	}
	if err != nil {
		return nil, err
	}

	if rc.BufferSize > 0 {
		if err := conn.SetReadBuffer(rc.BufferSize); err != nil {
			_ = conn.Close()
			return nil, errors.Wrapf(err, "failed to set read buffer size to %d", rc.BufferSize)
		}
	}

	return conn, nil
}
