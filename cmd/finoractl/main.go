// Command finoractl inspects and maintains finora data from the terminal.
package main

import (
	"os"

	"github.com/pterm/pterm"
)

func main() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	e := &env{}
	err := newRootCmd(e).Execute()
	if cerr := e.close(); err == nil {
		err = cerr
	}
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
