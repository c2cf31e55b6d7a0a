// Package testing provides simulation aids for validating the keyframe stream
// under degraded transport.
//
// # Simulated Link
//
// SimulatedLink is an in-memory interfaces.IDatagramTransport. It drops data
// datagrams with a configured probability and can deliver them out of order, while
// always delivering the end-of-stream sentinel last. Every send is recorded in a
// delivery log for test verification:
//
//	link := testing.NewSimulatedLink(&interfaces.NetworkConfig{
//	    UseSimulation:  true,
//	    NetworkTimeout: 100,
//	    LossRate:       0.2,
//	    ReorderWindow:  4,
//	}, rand.New(rand.NewSource(1)))
//
// # Loss Injection
//
// InjectLoss removes keys from an existing animation, emulating what a lossy
// transport would have produced, so reconstruction can be checked for graceful
// degradation without a network:
//
//	report, err := testing.InjectLoss(sc, skeletonRoot, 0.6, rand.New(rand.NewSource(7)))
//
// The package name shadows the standard library testing package; import it with
// an alias where both are needed.
package testing
