package realtime

// Named realtime streams.
const (
	// StreamCacheEvents carries cache record lifecycle events.
	StreamCacheEvents = "cache.events"
	// StreamSystem carries hub control replies such as pong.
	StreamSystem = "system"
)

// KnownStreams lists the streams clients may subscribe to.
var KnownStreams = map[string]struct{}{
	StreamCacheEvents: {},
	StreamSystem:      {},
}
