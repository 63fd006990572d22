package main

import "memoryland-backend/cmd"

func main() {
	cmd.Execute()
}
