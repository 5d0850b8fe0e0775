package utils

import "errors"
import "time"


//=========================================== Exponential Backoff


/*
	Exponential Backoff Strategy
		on failed operations, the time between retries doubles until either the
		operation succeeds or the max number of retries has been exhausted
*/

func NewExponentialBackoffStrat [T any](opts ExpBackoffOpts) *ExponentialBackoffStrat[T] {
	maxRetries := DefaultMaxRetries
	if opts.MaxRetries != nil { maxRetries = *opts.MaxRetries }

	return &ExponentialBackoffStrat[T]{
		maxRetries: maxRetries,
		initialTimeout: opts.TimeoutInMilliseconds,
		currentTimeout: opts.TimeoutInMilliseconds,
	}
}

func (expStrat *ExponentialBackoffStrat[T]) PerformBackoff(operation func() (T, error)) (T, error) {
	retries := 0

	for {
		res, err := operation()
		if err == nil {
			expStrat.Reset()
			return res, nil
		}

		retries++
		if retries >= expStrat.maxRetries {
			expStrat.Reset()
			return GetZero[T](), errors.New("process failed after max retries")
		}

		time.Sleep(time.Duration(expStrat.currentTimeout) * time.Millisecond)
		expStrat.currentTimeout = expStrat.currentTimeout * 2
	}
}

func (expStrat *ExponentialBackoffStrat[T]) Reset() {
	expStrat.currentTimeout = expStrat.initialTimeout
}
