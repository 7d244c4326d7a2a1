package main

import "github.com/canopy-network/merklevault/cmd/cli"

func main() {
	cli.Execute()
}
