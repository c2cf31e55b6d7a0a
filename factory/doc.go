// Package factory selects the datagram transport used by the keyframe stream.
//
// The factory abstracts the creation of senders and sources, allowing seamless
// switching between the in-memory simulated link (for tests and loopback runs)
// and real UDP sockets without changing consuming code.
//
// # Configuration
//
// The factory supports configuration via environment variables, applied on top
// of the configuration passed to NewTransportFactory:
//   - KEYSTREAM_USE_SIMULATION: "true" or "false" to enable simulation mode
//   - KEYSTREAM_NETWORK_TIMEOUT: read poll interval in milliseconds
//   - KEYSTREAM_LOSS_RATE: simulated datagram loss probability in [0, 1]
//   - KEYSTREAM_REORDER_WINDOW: datagrams the simulated link may reorder
//
// # Usage
//
//	f, err := factory.NewTransportFactory(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	src, err := f.CreateSource(":33450")
//	sender, err := f.CreateSender()
//	dest, err := f.Destination("127.0.0.1", 33450)
//
// In simulation mode the sender and the source share one link, so a transmitter
// and a receiver built from the same factory exchange datagrams in memory.
package factory
