// Package event defines the outcomes crust reports to its owner, and the contact info pair exchanged
// out of band before a rendezvous connect.
//
// Requests that complete asynchronously (preparing contact info, punching a hole, connecting) are made
// with a caller-chosen uint32 token. Exactly one Correlated event carrying that token is produced per
// request, holding either a success payload or an Err.
package event
