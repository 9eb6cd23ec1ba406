package main

import "github.com/netfluxlab/fluxgen/cmd"

func main() {
	cmd.Execute()
}
