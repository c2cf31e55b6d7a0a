// Package interfaces defines the datagram abstractions shared by the keyframe
// transmitter and receiver.
//
// This package lets the same streaming code run over real UDP sockets and over an
// in-memory simulated link, supporting both deployments and deterministic tests.
//
// # Core Interfaces
//
// [IDatagramSender] is what the transmitter needs: send one payload to one address.
// [IDatagramSource] is what the receiver needs: block for the next payload while
// honouring a context:
//
//	n, from, err := source.ReadDatagram(ctx, buf)
//	if err != nil {
//	    return err
//	}
//	if n == 0 {
//	    // end-of-stream sentinel
//	}
//
// # Configuration
//
// [NetworkConfig] holds settings for both implementations:
//
//	config := &interfaces.NetworkConfig{
//	    UseSimulation:  true,
//	    NetworkTimeout: 100, // milliseconds
//	    LossRate:       0.1,
//	}
//	if err := config.Validate(); err != nil {
//	    log.Fatalf("invalid config: %v", err)
//	}
//
// # Implementation Selection
//
// The factory package creates implementations based on configuration:
//   - UseSimulation=true: a SimulatedLink from the testing package
//   - UseSimulation=false: a UDPTransport from the transport package
//
// # Network Interface Compliance
//
// This package uses net.Addr interface types throughout. Implementations should
// never require concrete types like net.UDPAddr from their callers.
package interfaces
