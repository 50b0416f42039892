package main

import "github.com/grouprank/strava-ranking/internal/cmd"

func main() {
	cmd.Execute()
}
