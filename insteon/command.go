package insteon

// Cmd1 values for common standard-direct commands.
const (
	CmdCancelLinking byte = 0x08
	CmdStartLinking  byte = 0x09
	CmdVersionQuery  byte = 0x0D
	CmdPing          byte = 0x0F
	CmdOn            byte = 0x11
	CmdOnFast        byte = 0x12
	CmdOff           byte = 0x13
	CmdOffFast       byte = 0x14
	CmdStatusRequest byte = 0x19
	CmdBeep          byte = 0x30
)

var cmdNames = map[byte]string{
	CmdCancelLinking: "CancelLinking",
	CmdStartLinking:  "StartLinking",
	CmdVersionQuery:  "VersionQuery",
	CmdPing:          "Ping",
	CmdOn:            "On",
	CmdOnFast:        "OnFast",
	CmdOff:           "Off",
	CmdOffFast:       "OffFast",
	CmdStatusRequest: "StatusRequest",
	CmdBeep:          "Beep",
}

// CommandName returns a readable name for a cmd1 value, or "" if unknown.
func CommandName(cmd1 byte) string {
	return cmdNames[cmd1]
}

// LevelFromPercent maps a 0-100 brightness percentage onto the 0-255 range
// used by dimmable devices. Values above 100 are clamped.
func LevelFromPercent(percent uint8) byte {
	if percent > 100 {
		percent = 100
	}

	return byte(uint(percent) * 255 / 100)
}
