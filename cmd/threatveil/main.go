package main

import "github.com/threatveil/core/cmd/threatveil/commands"

func main() {
	commands.Execute()
}
