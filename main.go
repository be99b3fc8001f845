package main

import "github.com/parflate/parflate/cmd"

func main() {
	cmd.Execute()
}
