package utils


type ExpBackoffOpts struct {
	MaxRetries *int
	TimeoutInMilliseconds int
}

type ExponentialBackoffStrat [T any] struct {
	maxRetries int
	initialTimeout int
	currentTimeout int
}

const DefaultMaxRetries = 5
