// Package wait implements the poll-until-success-or-deadline combinator used by
// nearly every high level driver command. A command is issued once per attempt;
// as long as the reply matches the "not yet" predicate the combinator sleeps and
// tries again until the wait time is used up.
//
// The combinator is pure control flow over an injected attempt function. It knows
// nothing about the wire format and never retries errors: an error returned by
// the attempt (for example a transport error) ends the wait immediately and is
// returned unchanged.
//
// States:
//
//	Polling   -> Succeeded   the attempt returned a value the predicate accepts
//	Polling   -> Polling     the predicate reported "pending", sleep and retry
//	Polling   -> TimedOut    the deadline elapsed before an accepted value arrived
//
// The deadline is checked at the top of every iteration, so no attempt is started
// after the wait time elapsed. Between attempts the combinator sleeps
// min(IntervalTime, remaining), so a timeout is reported close to WaitTime.
//
// Usage Example:
//
//	// Wait up to 3s for an image to appear on the screen
//	pos, found, err := wait.Until(ctx, wait.DefaultSpec(),
//	    wait.Equal("-1.0|-1.0"),
//	    func() (string, error) { return ch.RequestString("findImage", "button.png") })
//	if err != nil {
//	    // transport error or wait.ErrOperationTimedOut (RaiseOnTimeout)
//	}
//	if !found {
//	    // timed out
//	}
package wait
