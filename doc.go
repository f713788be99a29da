// Package crust runs a connection engine for a peer-to-peer network: a reactor multiplexing
// non-blocking sockets, the bootstrap acceptor and connects, contact info preparation and hole
// punching. Outcomes are reported asynchronously on the channel returned by Service.Events.
//
// A request that takes a token is answered by exactly one event carrying that token, once the request
// has been accepted, i.e. the method returned nil.
package crust
