package main

import "github.com/Nuklai/nuklai-contracts-bitcoin-form/cmd"

func main() {
	cmd.Execute()
}
