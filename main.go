package main

import "github.com/autodealer/dealer_backend/cmd"

func main() {
	cmd.Execute()
}
