package collector

// Subscriber dispatches engine events to handlers.
type Subscriber struct {
	done                   chan struct{}
	runStartedHandler      func(RunStarted)
	unitCompletedHandler   func(UnitCompleted)
	unitRetryingHandler    func(UnitRetrying)
	unitSkippedHandler     func(UnitSkipped)
	sweepEndedHandler      func(SweepEnded)
	checkpointSavedHandler func(CheckpointSaved)
	checkpointErrorHandler func(CheckpointError)
	runFinishedHandler     func(RunFinished)
}

// OnRunStarted sets the handler for RunStarted events
func OnRunStarted(fn func(RunStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.runStartedHandler = fn }
}

// OnUnitCompleted sets the handler for UnitCompleted events
func OnUnitCompleted(fn func(UnitCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.unitCompletedHandler = fn }
}

// OnUnitRetrying sets the handler for UnitRetrying events
func OnUnitRetrying(fn func(UnitRetrying)) func(*Subscriber) {
	return func(s *Subscriber) { s.unitRetryingHandler = fn }
}

// OnUnitSkipped sets the handler for UnitSkipped events
func OnUnitSkipped(fn func(UnitSkipped)) func(*Subscriber) {
	return func(s *Subscriber) { s.unitSkippedHandler = fn }
}

// OnSweepEnded sets the handler for SweepEnded events
func OnSweepEnded(fn func(SweepEnded)) func(*Subscriber) {
	return func(s *Subscriber) { s.sweepEndedHandler = fn }
}

// OnCheckpointSaved sets the handler for CheckpointSaved events
func OnCheckpointSaved(fn func(CheckpointSaved)) func(*Subscriber) {
	return func(s *Subscriber) { s.checkpointSavedHandler = fn }
}

// OnCheckpointError sets the handler for CheckpointError events
func OnCheckpointError(fn func(CheckpointError)) func(*Subscriber) {
	return func(s *Subscriber) { s.checkpointErrorHandler = fn }
}

// OnRunFinished sets the handler for RunFinished events
func OnRunFinished(fn func(RunFinished)) func(*Subscriber) {
	return func(s *Subscriber) { s.runFinishedHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Returns a closer function that waits for all events to be processed.
//
// Example:
//
//	events, result := engine.Start(ctx)
//	closer := collector.NewSubscriber(events,
//	  collector.OnUnitSkipped(func(e collector.UnitSkipped) { ... }),
//	)
//	closer()
//	res := <-result
//
// The subscriber processes events until the events channel closes,
// then the closer function confirms all processing is complete.
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:                   make(chan struct{}),
		runStartedHandler:      func(RunStarted) {},
		unitCompletedHandler:   func(UnitCompleted) {},
		unitRetryingHandler:    func(UnitRetrying) {},
		unitSkippedHandler:     func(UnitSkipped) {},
		sweepEndedHandler:      func(SweepEnded) {},
		checkpointSavedHandler: func(CheckpointSaved) {},
		checkpointErrorHandler: func(CheckpointError) {},
		runFinishedHandler:     func(RunFinished) {},
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case RunStarted:
				s.runStartedHandler(e)
			case UnitCompleted:
				s.unitCompletedHandler(e)
			case UnitRetrying:
				s.unitRetryingHandler(e)
			case UnitSkipped:
				s.unitSkippedHandler(e)
			case SweepEnded:
				s.sweepEndedHandler(e)
			case CheckpointSaved:
				s.checkpointSavedHandler(e)
			case CheckpointError:
				s.checkpointErrorHandler(e)
			case RunFinished:
				s.runFinishedHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
