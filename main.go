package main

import "github.com/telebridge/telebridge/cmd"

func main() {
	cmd.Execute()
}
