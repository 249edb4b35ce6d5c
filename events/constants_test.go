package events

// testConcurrency is the number of goroutines used by concurrency tests.
const testConcurrency = 20
