package main

import "siteharvest/cmd"

func main() {
	cmd.Execute()
}
