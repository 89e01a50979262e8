package main

import (
	"finscrape/cmd/finscrape/commands"
	"finscrape/internal/components/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()

	commands.Execute(ctx)
}
