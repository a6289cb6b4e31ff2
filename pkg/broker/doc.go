// Package broker implements the Broker Client Pool and Topic Handle: a
// fixed-growing set of Sarama async-producer instances, each running its
// own delivery-poll loop, with topic handles load-balanced across
// instances and cached per instance. A cached handle stays in its
// instance's cache until the pool is stopped; entries do not expire and
// are not swept on access.
package broker
