package modem

import (
	"fmt"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/plm"
)

// ModemInfo is the identity reported by Get IM Info.
type ModemInfo struct {
	Address         insteon.Address
	Category        byte
	SubCategory     byte
	FirmwareVersion byte
}

func modemInfoFromFrame(f plm.Frame) (ModemInfo, error) {
	if f.Code != plm.CodeGetInfo || len(f.Payload) != 6 {
		return ModemInfo{}, fmt.Errorf("%w: %s", ErrUnexpectedResponse, f.String())
	}

	return ModemInfo{
		Address:         insteon.AddressFromBytes(f.Payload[0:3]),
		Category:        f.Payload[3],
		SubCategory:     f.Payload[4],
		FirmwareVersion: f.Payload[5],
	}, nil
}

// LinkMode selects the role of the modem when linking a device.
type LinkMode byte

const (
	LinkResponder  LinkMode = 0x00
	LinkController LinkMode = 0x01
	LinkAuto       LinkMode = 0x03
	LinkDelete     LinkMode = 0xFF
)

func (m LinkMode) String() string {
	switch m {
	case LinkResponder:
		return "Responder"
	case LinkController:
		return "Controller"
	case LinkAuto:
		return "Auto"
	case LinkDelete:
		return "Delete"
	default:
		return fmt.Sprintf("LinkMode(0x%02X)", byte(m))
	}
}

// LinkRecord is one record of the modem's ALL-Link database.
type LinkRecord struct {
	Flags insteon.LinkFlags
	Group byte
	// Address is the linked device.
	Address insteon.Address
	// Data holds three link-specific bytes, for a responder usually the
	// on-level, ramp rate and button.
	Data [3]byte
}

// Mode returns whether the modem is controller or responder of the link.
func (r LinkRecord) Mode() LinkMode {
	if r.Flags.IsController() {
		return LinkController
	}

	return LinkResponder
}

func linkRecordFromFrame(f plm.Frame) (LinkRecord, error) {
	if f.Code != plm.CodeAllLinkRecord || len(f.Payload) != 8 {
		return LinkRecord{}, fmt.Errorf("%w: %s", ErrUnexpectedResponse, f.String())
	}

	rec := LinkRecord{
		Flags:   insteon.LinkFlags(f.Payload[0]),
		Group:   f.Payload[1],
		Address: insteon.AddressFromBytes(f.Payload[2:5]),
	}
	copy(rec.Data[:], f.Payload[5:8])

	return rec, nil
}

// LinkComplete is the result of a completed linking session.
type LinkComplete struct {
	Mode            LinkMode
	Group           byte
	Address         insteon.Address
	Category        byte
	SubCategory     byte
	FirmwareVersion byte
}

func linkCompleteFromFrame(f plm.Frame) (LinkComplete, error) {
	if f.Code != plm.CodeAllLinkComplete || len(f.Payload) != 8 {
		return LinkComplete{}, fmt.Errorf("%w: %s", ErrUnexpectedResponse, f.String())
	}

	return LinkComplete{
		Mode:            LinkMode(f.Payload[0]),
		Group:           f.Payload[1],
		Address:         insteon.AddressFromBytes(f.Payload[2:5]),
		Category:        f.Payload[5],
		SubCategory:     f.Payload[6],
		FirmwareVersion: f.Payload[7],
	}, nil
}

// ManageAction is the control code of a Manage ALL-Link Record command.
type ManageAction byte

const (
	ManageFindFirst     ManageAction = 0x00
	ManageFindNext      ManageAction = 0x01
	ManageModify        ManageAction = 0x20
	ManageAddController ManageAction = 0x40
	ManageAddResponder  ManageAction = 0x41
	ManageDelete        ManageAction = 0x80
)

// DeviceStatus is a device's answer to a status request.
type DeviceStatus struct {
	// Delta changes whenever the device's link database changes.
	Delta byte
	// Level is the current on-level, 0x00 (off) to 0xFF (fully on).
	Level byte
}
