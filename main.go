package main

import "stopcpd/cmd"

func main() {
	cmd.Execute()
}
