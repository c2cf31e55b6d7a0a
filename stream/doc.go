// Package stream implements the keyframe streaming protocol: a Transmitter that
// turns marker channels into paced datagrams, a Receiver that reassembles them
// into a scene, and the Decoder both sides agree on.
//
// # Sessions
//
// A Session carries the role of a process. Transmitting and serving are mutually
// exclusive; a Transmitter sharing a Session with a running Receiver logs a
// warning and sends nothing.
//
//	session := stream.NewSession()
//	tx, err := stream.NewTransmitter(session, sender, stream.TransmitConfig{
//	    DatagramCapacity: limits.DefaultDatagramCapacity,
//	    SampleInterval:   stream.DefaultSampleInterval,
//	})
//	report, err := tx.TransmitFile(ctx, "walk.yaml", dest)
//
// # Receive pipeline
//
// The Receiver reads on one goroutine and hands a private copy of every datagram
// to a decode task. Tasks run in an errgroup whose size is bounded by
// ReceiverConfig.DecodeWorkers. Channel writes are serialized per joint by a
// JointLocker, either one coarse mutex or a striped set keyed by joint id.
//
// The zero-length sentinel ends the session: the receiver waits for every task,
// rebuilds the skeleton from the markers and writes the output scene. Datagrams
// lost in transit simply leave fewer keys behind; nothing is retransmitted.
package stream
