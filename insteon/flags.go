package insteon

import "strings"

// MessageFlags is the flags byte of an INSTEON message.
//
// Bits 7-5 select the message type, bit 4 marks an extended message, bits 3-2
// hold the hops left and bits 1-0 the maximum hops.
type MessageFlags byte

const (
	// FlagBroadcastOrNak marks a broadcast when combined with FlagGroup, and a
	// NAK (or unacknowledged all-link message) otherwise.
	FlagBroadcastOrNak MessageFlags = 1 << 7
	// FlagGroup marks an all-link (group) message.
	FlagGroup MessageFlags = 1 << 6
	// FlagAck marks an acknowledgement of a prior message.
	FlagAck MessageFlags = 1 << 5
	// FlagExtended marks an extended message carrying 14 data bytes.
	FlagExtended MessageFlags = 1 << 4
)

const (
	typeMask    MessageFlags = 0xE0
	hopsMask    byte         = 0x03
	hopsLeftPos              = 2
)

// DefaultMaxHops is the maximum hop count normally used for outgoing messages.
const DefaultMaxHops = 3

// MessageType is the 3-bit message type carried in bits 7-5 of the flags byte.
type MessageType byte

const (
	TypeDirect           MessageType = 0x00
	TypeDirectAck        MessageType = 0x01
	TypeAllLinkCleanup   MessageType = 0x02
	TypeCleanupAck       MessageType = 0x03
	TypeBroadcast        MessageType = 0x04
	TypeDirectNak        MessageType = 0x05
	TypeAllLinkBroadcast MessageType = 0x06
	TypeCleanupNak       MessageType = 0x07
)

// Type returns the message type encoded in the flags.
func (f MessageFlags) Type() MessageType {
	return MessageType((f & typeMask) >> 5)
}

// Has reports whether all bits in mask are set.
func (f MessageFlags) Has(mask MessageFlags) bool {
	return f&mask == mask
}

// IsExtended reports whether the extended bit is set.
func (f MessageFlags) IsExtended() bool {
	return f.Has(FlagExtended)
}

// IsDirectAck reports whether the flags describe an ACK of a direct message.
func (f MessageFlags) IsDirectAck() bool {
	return f.Type() == TypeDirectAck
}

// IsDirectNak reports whether the flags describe a NAK of a direct message.
func (f MessageFlags) IsDirectNak() bool {
	return f.Type() == TypeDirectNak
}

// HopsLeft returns the number of hops remaining (bits 3-2).
func (f MessageFlags) HopsLeft() byte {
	return (byte(f) >> hopsLeftPos) & hopsMask
}

// MaxHops returns the maximum hop count (bits 1-0).
func (f MessageFlags) MaxHops() byte {
	return byte(f) & hopsMask
}

// WithHops returns f with both the hops-left and max-hops fields set to
// maxHops, which is how a message is originated.
func (f MessageFlags) WithHops(maxHops byte) MessageFlags {
	h := maxHops & hopsMask
	b := byte(f) &^ (hopsMask<<hopsLeftPos | hopsMask)

	return MessageFlags(b | h<<hopsLeftPos | h)
}

func (f MessageFlags) String() string {
	var parts []string
	switch f.Type() {
	case TypeDirect:
		parts = append(parts, "Direct")
	case TypeDirectAck:
		parts = append(parts, "DirectAck")
	case TypeAllLinkCleanup:
		parts = append(parts, "Cleanup")
	case TypeCleanupAck:
		parts = append(parts, "CleanupAck")
	case TypeBroadcast:
		parts = append(parts, "Broadcast")
	case TypeDirectNak:
		parts = append(parts, "DirectNak")
	case TypeAllLinkBroadcast:
		parts = append(parts, "AllLinkBroadcast")
	case TypeCleanupNak:
		parts = append(parts, "CleanupNak")
	}
	if f.IsExtended() {
		parts = append(parts, "Extended")
	}

	return strings.Join(parts, "|")
}

// LinkFlags is the flags byte of an ALL-Link database record.
type LinkFlags byte

const (
	// LinkInUse marks a record as in use.
	LinkInUse LinkFlags = 1 << 7
	// LinkController is set when the modem is the controller of the link,
	// clear when it is a responder.
	LinkController LinkFlags = 1 << 6
	// LinkHasBeenUsed is set once the record slot has ever been written.
	LinkHasBeenUsed LinkFlags = 1 << 1
)

// InUse reports whether the record is in use.
func (f LinkFlags) InUse() bool { return f&LinkInUse != 0 }

// IsController reports whether the modem is the controller in this link.
func (f LinkFlags) IsController() bool { return f&LinkController != 0 }
