package core

import "fmt"

// ClosedError is returned when work is submitted to a reactor that has been closed.
type ClosedError struct{}

func (e ClosedError) Error() string {
	return "ClosedError"
}

// BorrowError is the panic value raised when a Cell is borrowed while another borrow is in flight.
type BorrowError struct {
	Session SessionID
}

func (e BorrowError) Error() string {
	return fmt.Sprintf("BorrowError: session %d already borrowed", e.Session)
}

// UnsupportedError is returned by NewReactor on platforms without a poller implementation.
type UnsupportedError struct{}

func (e UnsupportedError) Error() string {
	return "UnsupportedError"
}

// RunningError is returned by Run when the reactor is already being run.
type RunningError struct{}

func (e RunningError) Error() string {
	return "RunningError"
}
