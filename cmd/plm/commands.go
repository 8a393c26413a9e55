package main

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/modem"
)

type modemCommand struct {
	Info  modemInfoCommand  `command:"info" description:"Show the modem address and firmware"`
	Links modemLinksCommand `command:"links" description:"List the ALL-Link database"`
	Link  modemLinkCommand  `command:"link" description:"Link a device to the modem"`
}

type modemInfoCommand struct {
	app *App
}

func (c *modemInfoCommand) Execute([]string) error {
	return c.app.withModem(func(ctx context.Context, m *modem.Modem) error {
		info, err := m.GetInfo(ctx)
		if err != nil {
			return err
		}

		renderTable(c.app.out, []string{"Address", "Category", "Subcategory", "Firmware"}, [][]string{{
			info.Address.String(),
			fmt.Sprintf("0x%02X", info.Category),
			fmt.Sprintf("0x%02X", info.SubCategory),
			fmt.Sprintf("0x%02X", info.FirmwareVersion),
		}})

		return nil
	})
}

type modemLinksCommand struct {
	app *App
}

func (c *modemLinksCommand) Execute([]string) error {
	return c.app.withModem(func(ctx context.Context, m *modem.Modem) error {
		links, err := m.Links(ctx)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(links))
		for i, rec := range links {
			rows = append(rows, []string{
				fmt.Sprintf("%d", i),
				rec.Mode().String(),
				fmt.Sprintf("%d", rec.Group),
				c.app.label(rec.Address),
				fmt.Sprintf("% X", rec.Data[:]),
			})
		}
		renderTable(c.app.out, []string{"#", "Mode", "Group", "Device", "Data"}, rows)

		return nil
	})
}

type modemLinkCommand struct {
	app *App

	Mode    string          `short:"m" long:"mode" description:"Role of the modem" default:"controller" choice:"controller" choice:"responder" choice:"auto" choice:"delete"`
	Group   uint8           `short:"g" long:"group" description:"ALL-Link group" default:"1"`
	Address insteon.Address `short:"a" long:"address" description:"Put this device into linking mode first instead of pressing its set button" value-name:"HH.HH.HH"`
	Wait    time.Duration   `short:"w" long:"wait" description:"How long to wait for the device" default:"30s"`
}

var linkModes = map[string]modem.LinkMode{
	"controller": modem.LinkController,
	"responder":  modem.LinkResponder,
	"auto":       modem.LinkAuto,
	"delete":     modem.LinkDelete,
}

func (c *modemLinkCommand) Execute([]string) error {
	mode, ok := linkModes[c.Mode]
	if !ok {
		return fmt.Errorf("unknown link mode %q", c.Mode)
	}

	var addr *insteon.Address
	if !c.Address.IsZero() {
		addr = &c.Address
	}

	return c.app.withModem(func(ctx context.Context, m *modem.Modem) error {
		if addr == nil {
			fmt.Fprintf(c.app.out, "Press the set button of the device within %s\n", c.Wait)
		}

		res, err := m.LinkDevice(ctx, addr, mode, c.Group)
		if err != nil {
			return err
		}

		renderTable(c.app.out, []string{"Device", "Mode", "Group", "Category", "Subcategory", "Firmware"}, [][]string{{
			c.app.label(res.Address),
			res.Mode.String(),
			fmt.Sprintf("%d", res.Group),
			fmt.Sprintf("0x%02X", res.Category),
			fmt.Sprintf("0x%02X", res.SubCategory),
			fmt.Sprintf("0x%02X", res.FirmwareVersion),
		}})

		return nil
	}, modem.WithLinkTimeout(c.Wait))
}

type listenCommand struct {
	app *App
}

func (c *listenCommand) Execute([]string) error {
	return c.app.withModem(func(ctx context.Context, m *modem.Modem) error {
		stream := m.Listen()
		defer stream.Close()

		for msg := range stream.All(ctx) {
			fmt.Fprintf(c.app.out, "%s  %s\n", time.Now().Format(time.TimeOnly), msg)
		}

		return nil
	})
}

type deviceCommand struct {
	On      deviceOnCommand      `command:"on" description:"Turn a device on"`
	Off     deviceOffCommand     `command:"off" description:"Turn a device off"`
	Ping    devicePingCommand    `command:"ping" description:"Check that a device answers"`
	Beep    deviceBeepCommand    `command:"beep" description:"Make a device beep"`
	Status  deviceStatusCommand  `command:"status" description:"Show the on-level of a device"`
	Version deviceVersionCommand `command:"version" description:"Show the INSTEON engine version of a device"`
}

type deviceArgs struct {
	Device string `positional-arg-name:"DEVICE" description:"Device address (HH.HH.HH) or name from the configuration file"`
}

type deviceOnCommand struct {
	app *App

	Level uint8      `short:"l" long:"level" description:"On-level in percent" default:"100"`
	Fast  bool       `short:"f" long:"fast" description:"Skip the ramp"`
	Args  deviceArgs `positional-args:"yes" required:"yes"`
}

func (c *deviceOnCommand) Execute([]string) error {
	return c.app.withDevice(c.Args.Device, func(ctx context.Context, m *modem.Modem, addr insteon.Address) error {
		if _, err := m.TurnOn(ctx, addr, c.Level, c.Fast); err != nil {
			return err
		}
		fmt.Fprintf(c.app.out, "%s on at %d%%\n", c.app.label(addr), min(c.Level, 100))

		return nil
	})
}

type deviceOffCommand struct {
	app *App

	Fast bool       `short:"f" long:"fast" description:"Skip the ramp"`
	Args deviceArgs `positional-args:"yes" required:"yes"`
}

func (c *deviceOffCommand) Execute([]string) error {
	return c.app.withDevice(c.Args.Device, func(ctx context.Context, m *modem.Modem, addr insteon.Address) error {
		if _, err := m.TurnOff(ctx, addr, c.Fast); err != nil {
			return err
		}
		fmt.Fprintf(c.app.out, "%s off\n", c.app.label(addr))

		return nil
	})
}

type devicePingCommand struct {
	app *App

	Args deviceArgs `positional-args:"yes" required:"yes"`
}

func (c *devicePingCommand) Execute([]string) error {
	return c.app.withDevice(c.Args.Device, func(ctx context.Context, m *modem.Modem, addr insteon.Address) error {
		start := time.Now()
		if err := m.Ping(ctx, addr); err != nil {
			return err
		}
		fmt.Fprintf(c.app.out, "%s answered in %s\n", c.app.label(addr), time.Since(start).Round(time.Millisecond))

		return nil
	})
}

type deviceBeepCommand struct {
	app *App

	Args deviceArgs `positional-args:"yes" required:"yes"`
}

func (c *deviceBeepCommand) Execute([]string) error {
	return c.app.withDevice(c.Args.Device, func(ctx context.Context, m *modem.Modem, addr insteon.Address) error {
		return m.Beep(ctx, addr)
	})
}

type deviceStatusCommand struct {
	app *App

	Args deviceArgs `positional-args:"yes" required:"yes"`
}

func (c *deviceStatusCommand) Execute([]string) error {
	return c.app.withDevice(c.Args.Device, func(ctx context.Context, m *modem.Modem, addr insteon.Address) error {
		status, err := m.Status(ctx, addr)
		if err != nil {
			return err
		}

		renderTable(c.app.out, []string{"Device", "Level", "Percent", "Database delta"}, [][]string{{
			c.app.label(addr),
			fmt.Sprintf("0x%02X", status.Level),
			fmt.Sprintf("%d%%", int(status.Level)*100/255),
			fmt.Sprintf("0x%02X", status.Delta),
		}})

		return nil
	})
}

type deviceVersionCommand struct {
	app *App

	Args deviceArgs `positional-args:"yes" required:"yes"`
}

func (c *deviceVersionCommand) Execute([]string) error {
	return c.app.withDevice(c.Args.Device, func(ctx context.Context, m *modem.Modem, addr insteon.Address) error {
		version, err := m.Version(ctx, addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.out, "%s engine %s\n", c.app.label(addr), engineName(version))

		return nil
	})
}

func engineName(version byte) string {
	switch version {
	case 0x00:
		return "i1"
	case 0x01:
		return "i2"
	case 0x02:
		return "i2cs"
	default:
		return fmt.Sprintf("unknown (0x%02X)", version)
	}
}
