package main

import (
	"postcard-creator/cmd/postcard-cli/commands"
	"postcard-creator/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
