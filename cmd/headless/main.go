package main

import "github.com/jmcleod/headless/cmd/headless/cmd"

func main() {
	cmd.Execute()
}
