// Package transport is the client-facing boundary of a dictation session.
//
// Conn and Handshake describe a bidirectional message connection; inbound
// frames arrive as a tagged Message (Binary or Text) and outbound frames are
// JSON. The WebSocket implementation is built on gorilla/websocket:
//
//	up := transport.NewUpgrader(cfg)
//	hs := up.Handshake(w, r)
//	conn, err := hs.Accept()
//
// Receive honors context cancellation by expiring the read deadline, so a
// canceled session never leaves a goroutine parked in a read.
package transport
