// Package keystream streams skeletal animation between processes over UDP.
//
// A client converts the skeleton of an animation file into absolute markers and
// sends one sample per joint per key, packed into fixed-size datagrams and
// terminated by an empty datagram. A server loads a template scene, applies the
// samples it receives to the template's markers, rebuilds the skeleton and
// writes the result. Delivery is best effort: lost datagrams leave gaps that
// the curve interpolation bridges.
//
// # Getting Started
//
//	options := keystream.NewOptions()
//	options.Config.Server.Template = "base.yaml"
//	options.Config.Server.Output = "result.yaml"
//
//	server, err := keystream.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//
//	if err := server.StartServer(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	report, err := server.Wait()
//
// and on the sending side:
//
//	client, err := keystream.New(keystream.NewOptions())
//	report, err := client.Transmit(ctx, "walk.yaml")
//
// # Core Types
//
//   - [Streamer]: owns a session, a transport factory and at most one running server
//   - [Options]: configuration and an optional shared transport factory
//
// Lower level building blocks live in the stream, packet, scene and jointmap
// packages; transport selection lives in factory.
package keystream
