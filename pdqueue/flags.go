package pdqueue

// PktFlags are the public per-element flags an application sets at
// publish/subscribe time.
type PktFlags uint8

const (
	// FlagDefault requests the engine's default behavior (no callback, no marshalling).
	FlagDefault PktFlags = 0x00
	// FlagCallback enables delivery of a callback on accepted frames (receiver) or
	// on every emission, cyclic or PULL-reply (publisher).
	FlagCallback PktFlags = 0x01
	// FlagMarshall routes Put/Get payloads through the application's marshaller.
	FlagMarshall PktFlags = 0x02
	// FlagForceCB always notifies on a subscriber's callback, even without a data change.
	FlagForceCB PktFlags = 0x04
	// FlagRedundant marks a publisher as part of a redundancy group; only the
	// group's leader actually transmits.
	FlagRedundant PktFlags = 0x08
)

// Has reports whether all bits of flag are set.
func (f PktFlags) Has(flag PktFlags) bool {
	return f&flag == flag
}

// PrivFlags are private, engine-mutated per-element flags never set directly
// by the application.
type PrivFlags uint8

const (
	// FlagInvalidData marks an element with no valid payload: a publisher must
	// not emit it, a subscriber must not hand it to Get.
	FlagInvalidData PrivFlags = 0x01
	// FlagTimedOut marks a subscriber whose watchdog has expired without a
	// fresh frame since.
	FlagTimedOut PrivFlags = 0x02
	// FlagReq2BSent marks an element due for an out-of-cycle send on the next
	// SendDue pass (set by the PULL-request handling in Receive).
	FlagReq2BSent PrivFlags = 0x04
)

// Has reports whether all bits of flag are set.
func (f PrivFlags) Has(flag PrivFlags) bool {
	return f&flag == flag
}
