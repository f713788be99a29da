package rendezvous

// NoMappingError is returned when STUN servers were configured but none reported a mapped address.
type NoMappingError struct{}

func (e NoMappingError) Error() string {
	return "NoMappingError"
}

// UnreachableError is returned when the secret could not be sent to any rendezvous address.
type UnreachableError struct{}

func (e UnreachableError) Error() string {
	return "UnreachableError"
}

// TimeoutError is returned when a STUN server does not answer in time.
type TimeoutError struct{}

func (e TimeoutError) Error() string {
	return "TimeoutError"
}
