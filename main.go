package main

import "github.com/clinops/dashboard-gin/cmd"

func main() {
	cmd.Execute()
}
