package main

import "github.com/rail-service/crosschain_transfer/cmd/transferctl/cmd"

func main() {
	cmd.Execute()
}
