package main

import "github.com/bryanchriswhite/BodyStreamer/cmd/bodystream/commands"

func main() {
	commands.Execute()
}
