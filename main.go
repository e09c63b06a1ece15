package main

import "github.com/moyu-x/file-ingest/cmd"

func main() {
	cmd.Execute()
}
