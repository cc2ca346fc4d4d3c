package broker

import "errors"

var (
	// ErrTopicExists is returned when creating a topic whose name is taken.
	ErrTopicExists = errors.New("topic already exists")

	// ErrTopicNotFound is returned when an operation targets a topic that
	// does not exist.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrInvalidTopicName is returned when a topic name is empty after
	// trimming.
	ErrInvalidTopicName = errors.New("topic name must be non-empty")

	// ErrNotSubscribed is returned by Unsubscribe when the (client, topic)
	// pair is not currently joined.
	ErrNotSubscribed = errors.New("subscription not found")

	// ErrSubscriberGone is returned by Subscribe when replay delivery
	// failed (closed transport, or overflow under DISCONNECT) and the
	// record was removed mid-operation.
	ErrSubscriberGone = errors.New("subscriber removed during subscribe")
)
