// Package transport provides the UDP datagram transport of the keyframe stream.
//
// The transport moves opaque payloads: it never parses them and never merges or
// splits them, so one Send produces exactly one datagram, including the
// zero-length end-of-stream sentinel.
//
// # Usage
//
//	t, err := transport.NewUDPTransport(":33450", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	buf := make([]byte, limits.DefaultDatagramCapacity+1)
//	n, from, err := t.ReadDatagram(ctx, buf)
//
// # Cancellation
//
// UDP reads cannot be interrupted by a context directly. ReadDatagram sets a read
// deadline of one poll interval (DefaultPollInterval unless configured), checks
// the context whenever the deadline fires, and returns ctx.Err() once the context
// is done. Closing the transport unblocks pending reads with ErrTransportClosed.
//
// # Network Interface Compliance
//
// The transport is built on net.PacketConn and net.Addr interfaces; callers never
// need *net.UDPConn or *net.UDPAddr.
package transport
