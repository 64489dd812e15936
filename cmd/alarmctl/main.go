package main

import "github.com/oshokin/alarm-bridge/cmd/alarmctl/cmd"

func main() {
	cmd.Execute()
}
