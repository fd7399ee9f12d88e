// Package messages defines the typed data contracts exchanged between the
// sensor phase, the effector phase and any telemetry consumer.
//
// Every value type here is validated when it is constructed through its
// New* function. Envelope messages (IntelligencePacket, FeedbackPacket)
// deep-copy their slices and maps on construction so a value handed to the
// event bus can never be mutated by its producer afterwards.
//
// Dependency rule: this package imports only the standard library.
package messages
