// Package parallel holds a single, narrowly-scoped helper for joining two
// concurrent fallible calls. The corpus does not carry golang.org/x/sync, so
// this is a deliberate stdlib rendition rather than an adopted dependency —
// see DESIGN.md for the justification.
package parallel

// RunTwo runs a and b concurrently and waits for both. It returns the first
// non-nil error encountered (preferring a's over b's when both fail), after
// both goroutines have finished.
func RunTwo(a, b func() error) error {
	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() { errA <- a() }()
	go func() { errB <- b() }()

	err1 := <-errA
	err2 := <-errB

	if err1 != nil {
		return err1
	}
	return err2
}
