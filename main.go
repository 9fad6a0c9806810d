package main

import "github.com/jake-scott/control4-bridge/cmd"

func main() {
	cmd.Execute()
}
