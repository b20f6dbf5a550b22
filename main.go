package main

import "github.com/norruva/dpp-service/cmd"

func main() {
	cmd.Execute()
}
