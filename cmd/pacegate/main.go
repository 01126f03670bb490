package main

import "github.com/pacegate/pacegate/cmd/pacegate/cmd"

func main() {
	cmd.Execute()
}
