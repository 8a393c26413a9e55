// Command plm talks to an INSTEON PowerLinc Modem attached to a serial port
// or reachable over TCP.
//
//	plm --device /dev/ttyUSB0 modem info
//	plm --host hub.local:9761 device on --level 50 22.33.44
//	plm --config plm.yaml listen
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	parser := newParser(newApp(os.Stdout))

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func newParser(app *App) *flags.Parser {
	parser := flags.NewParser(app, flags.Default)
	parser.ShortDescription = "INSTEON PowerLinc Modem tool"
	parser.CommandHandler = app.run

	return parser
}
