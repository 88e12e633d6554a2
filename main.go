package main

import "terrasync/cmd"

func main() {
	cmd.Execute()
}
