// Package modem provides the command API of an INSTEON PowerLinc Modem on
// top of a [plm.Conn]: device on/off/dim, ping, beep, status and version
// queries, modem information, the modem's link database, and the device
// linking workflow.
//
// Modem-level NAKs (the modem refusing a command, usually because it is busy)
// are retried, since the command was never sent on the INSTEON network.
// Device NAKs and timeouts are returned to the caller as is.
package modem
