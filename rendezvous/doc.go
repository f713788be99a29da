// Package rendezvous prepares the contact info two peers exchange out of band, and punches a UDP
// hole between them once each side holds the other's info.
//
// A peer prepares its contact info with PrepareContactInfo: a UDP socket is bound, a random secret is
// drawn and the socket's public address is learned from STUN servers. The owner sends the
// TheirContactInfo projection to the other peer, and once it has the other peer's projection calls
// PunchHole. Each side sends its secret to the other's rendezvous addresses and waits for the
// other's secret to arrive.
package rendezvous
