package aggregator

// Subscriber handles event subscriptions.
type Subscriber struct {
	done                   chan struct{}
	runStartedHandler      func(RunStarted)
	versionScannedHandler  func(VersionScanned)
	collectDoneHandler     func(CollectDone)
	dedupDoneHandler       func(DedupDone)
	balanceSkippedHandler  func(BalanceSkipped)
	balanceRecordedHandler func(BalanceRecorded)
	runDoneHandler         func(RunDone)
	runErrorHandler        func(RunError)
}

// OnRunStarted sets the handler for RunStarted events
func OnRunStarted(fn func(RunStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.runStartedHandler = fn }
}

// OnVersionScanned sets the handler for VersionScanned events
func OnVersionScanned(fn func(VersionScanned)) func(*Subscriber) {
	return func(s *Subscriber) { s.versionScannedHandler = fn }
}

// OnCollectDone sets the handler for CollectDone events
func OnCollectDone(fn func(CollectDone)) func(*Subscriber) {
	return func(s *Subscriber) { s.collectDoneHandler = fn }
}

// OnDedupDone sets the handler for DedupDone events
func OnDedupDone(fn func(DedupDone)) func(*Subscriber) {
	return func(s *Subscriber) { s.dedupDoneHandler = fn }
}

// OnBalanceSkipped sets the handler for BalanceSkipped events
func OnBalanceSkipped(fn func(BalanceSkipped)) func(*Subscriber) {
	return func(s *Subscriber) { s.balanceSkippedHandler = fn }
}

// OnBalanceRecorded sets the handler for BalanceRecorded events
func OnBalanceRecorded(fn func(BalanceRecorded)) func(*Subscriber) {
	return func(s *Subscriber) { s.balanceRecordedHandler = fn }
}

// OnRunDone sets the handler for RunDone events
func OnRunDone(fn func(RunDone)) func(*Subscriber) {
	return func(s *Subscriber) { s.runDoneHandler = fn }
}

// OnRunError sets the handler for RunError events
func OnRunError(fn func(RunError)) func(*Subscriber) {
	return func(s *Subscriber) { s.runErrorHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the
// dispatch loop. Returns a closer function that waits for all events to be
// processed.
//
// Cleanup guarantee pattern:
//
//	The closer function ensures all events are handled before returning.
//	Use defer closer() immediately to guarantee cleanup before function exit.
//
// Example:
//
//	closer := aggregator.NewSubscriber(events,
//	  aggregator.OnRunDone(func(e RunDone) { ... }),
//	)
//	defer closer()  // Ensures all events processed before exit
//
// The subscriber processes events until the events channel closes,
// then the closer function confirms all processing is complete.
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:                   make(chan struct{}),
		runStartedHandler:      func(RunStarted) {},      // nop by default
		versionScannedHandler:  func(VersionScanned) {},  // nop by default
		collectDoneHandler:     func(CollectDone) {},     // nop by default
		dedupDoneHandler:       func(DedupDone) {},       // nop by default
		balanceSkippedHandler:  func(BalanceSkipped) {},  // nop by default
		balanceRecordedHandler: func(BalanceRecorded) {}, // nop by default
		runDoneHandler:         func(RunDone) {},         // nop by default
		runErrorHandler:        func(RunError) {},        // nop by default
	}

	for _, opt := range opts {
		opt(s)
	}

	// Start the dispatch loop immediately
	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case RunStarted:
				s.runStartedHandler(e)
			case VersionScanned:
				s.versionScannedHandler(e)
			case CollectDone:
				s.collectDoneHandler(e)
			case DedupDone:
				s.dedupDoneHandler(e)
			case BalanceSkipped:
				s.balanceSkippedHandler(e)
			case BalanceRecorded:
				s.balanceRecordedHandler(e)
			case RunDone:
				s.runDoneHandler(e)
			case RunError:
				s.runErrorHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
