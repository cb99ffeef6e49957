package main

import "cgu-connect/cmd"

func main() {
	cmd.Execute()
}
