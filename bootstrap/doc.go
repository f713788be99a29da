// Package bootstrap holds the reactor states of the bootstrap phase: an Acceptor that hands inbound
// TCP streams to the owner, and outbound connects that each report exactly one OnBootstrapConnect.
//
// Every function in this package must be called on the reactor, i.e. from a core.Closure or a
// State callback.
package bootstrap
