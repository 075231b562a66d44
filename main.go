package main

import "github.com/gamepulse/catalog-ingest/cmd"

func main() {
	cmd.Execute()
}
