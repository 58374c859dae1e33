// Package main is the entry point for the menagerie game server.
package main

func main() {
	Execute()
}
