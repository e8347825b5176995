package actor

import "time"

// Wakeup is delivered to a mailbox after a delay, letting actors implement
// timeouts (command-listener max_command_sec, coordinator load timeout)
// without ever sleeping inline inside a message handler.
type Wakeup struct {
	// Reason lets the handler distinguish multiple concurrent timers
	// (e.g. a silence timer vs. an overall recording timeout).
	Reason string
}

// AfterFunc schedules a Wakeup with an empty Reason to be sent to mb after d.
// The returned Stop function cancels the timer if it hasn't fired yet.
func AfterFunc[M any](mb *Mailbox[M], d time.Duration, wrap func(Wakeup) M) (stop func() bool) {
	t := time.AfterFunc(d, func() {
		mb.TrySend(wrap(Wakeup{}))
	})
	return t.Stop
}

// AfterFuncReason is AfterFunc with an explicit Wakeup.Reason tag.
func AfterFuncReason[M any](mb *Mailbox[M], d time.Duration, reason string, wrap func(Wakeup) M) (stop func() bool) {
	t := time.AfterFunc(d, func() {
		mb.TrySend(wrap(Wakeup{Reason: reason}))
	})
	return t.Stop
}
