// Package insteon holds the value types shared by every layer that talks to an
// INSTEON network: the 3-byte device [Address], the message flags byte carried
// by every INSTEON message, the ALL-Link record flags, and the well-known
// standard-direct command codes (cmd1).
//
// Nothing in this package performs I/O. The wire framing used to reach the
// network through a PowerLinc Modem lives in package plm.
package insteon
