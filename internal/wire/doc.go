// Package wire implements the LDAPv3 message codec used by the session
// layer: BER envelope framing, request construction, response and control
// parsing, and the protocol result-code table.
//
// The package deals only in wire shapes. It never touches the network
// directly except through Framer, which accumulates bytes from a net.Conn
// and cuts them into complete BER envelopes, and it holds no session
// state; correlation and operation lifecycles live in the root package.
package wire
