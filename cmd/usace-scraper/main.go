package main

import (
	"usace-scraper/cmd/usace-scraper/commands"
	"usace-scraper/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
