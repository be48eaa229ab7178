package main

import "github.com/thesyncim/vaapi/cmd/vaprobe/commands"

func main() {
	commands.Execute()
}
