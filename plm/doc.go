// Package plm implements the host side of the INSTEON PowerLinc Modem (PLM)
// serial protocol.
//
// The PLM speaks a binary command/response protocol over a byte stream,
// usually a 19200 baud serial port. Every frame starts with STX (0x02)
// followed by a command code:
//
//   - 0x60..0x73 are host commands. The modem echoes each command back
//     followed by ACK (0x06) when it was accepted or NAK (0x15) when it was
//     not (typically because the modem is busy).
//   - 0x50..0x58 are unsolicited modem frames: messages received from
//     INSTEON devices, ALL-Link database records, link completion and
//     button events. They carry no terminator.
//
// # Components
//
//   - [Encode], [Decode] and [DecodeCommand] are the pure frame codec. The
//     decoder recognizes one frame at the head of a buffer and skips one byte
//     on line noise ([ErrResync]).
//   - [Transport] is the narrow byte channel the engine depends on.
//   - [Conn] owns the transport. A write loop serializes writes, a single
//     read loop matches decoded frames to pending requests by [Key] and
//     publishes all other unsolicited frames on [EventStream]s.
//   - [Request] is a single submitted command awaiting its response.
//
// # Correlation
//
// The modem answers strictly in order but interleaves unsolicited traffic
// with command echoes, so responses are matched by key rather than by
// submission order:
//
//   - a command echo matches on its command code, plus the target address
//     for Send INSTEON (0x62) and Manage ALL-Link Record (0x6F)
//   - a device direct ACK/NAK (0x50/0x51) matches on the sending device
//   - ALL-Link records (0x57) and link completion (0x53) match on the code
//
// Requests sharing a key are resolved first in, first out.
//
// # Timeouts
//
// Every request carries a deadline, [DefaultCommandTimeout] unless set with
// [WithCommandTimeout] or [WithTimeout]. A request that is not answered in
// time fails with [ErrCommandTimeout] and is removed, so a late response is
// treated as stale rather than delivered.
//
// The core never retries. Retry policy belongs to the caller; see the modem
// package for a NAK-retrying command API.
package plm
