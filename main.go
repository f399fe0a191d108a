package main

import "github.com/AnTengye/orderledger/cmd"

func main() {
	cmd.Execute()
}
