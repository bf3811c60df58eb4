package main

import "github.com/jcarver/latchkey/cmd/latchkey/cmd"

func main() {
	cmd.Execute()
}
