package main

import "github.com/channelcast/backend/internal/cli"

func main() {
	cli.Execute()
}
