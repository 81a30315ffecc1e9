package main

import "github.com/flowmesh/timely/cmd/cmd"

func main() {
	cmd.Execute()
}
