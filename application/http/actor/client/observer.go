package client

import (
	"time"

	"httpwire/application/http/transfer"
)

// Observer is notified about the progress of exchanges.
// Implementations must be safe for concurrent use.
type Observer interface {
	// Completed is called once per Send.
	Completed(method string, code int, elapsed time.Duration)
	Redirected(code int)
	AuthRetried(scheme string)
	DecodeFellBack(coding transfer.Coding)
	// Failed is called with the kind of error that ended a Send.
	Failed(kind string)
}

type nopObserver struct{}

func (nopObserver) Completed(string, int, time.Duration) {}
func (nopObserver) Redirected(int)                       {}
func (nopObserver) AuthRetried(string)                   {}
func (nopObserver) DecodeFellBack(transfer.Coding)       {}
func (nopObserver) Failed(string)                        {}
