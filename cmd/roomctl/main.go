package main

import (
	"os"

	"github.com/iliyamo/room-booking/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
