package main

import "github.com/samsaffron/proxychat/cmd"

func main() {
	cmd.Execute()
}
