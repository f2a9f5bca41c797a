// Package bridge implements the marshalling protocol between script code and
// native code.
//
// The script side (Bridge) holds Proxy objects for by-reference instances and
// Value copies for by-value classes. The native side (Endpoint) holds the real
// instances and runs them through a Host. Both sides exchange Message values
// over a Transport; Pipe connects them in-process and StreamTransport runs
// over any byte stream.
//
// Every call on a proxy is asynchronous and returns a Future. Calls issued
// while the constructor is still pending are queued and sent in issue order
// once it is acknowledged. Each holder of a proxy releases it exactly once;
// when the last holder releases, the native instance is released too.
package bridge
