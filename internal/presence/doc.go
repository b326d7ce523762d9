// Package presence tracks which authenticated sessions currently hold a
// live duplex connection for push delivery.
//
// The registry is a plain in-process map behind a mutex, owned by the
// process that holds the connections: it is never persisted, and on
// restart clients simply reconnect. At most one connection may be live
// per session; attaching a second one closes the first with a "replaced"
// reason. A periodic sweep closes connections that have stopped
// acknowledging pings and probes the rest so genuinely idle-but-alive
// clients are not dropped.
package presence
