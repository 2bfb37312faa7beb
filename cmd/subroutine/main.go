// Package main is the entry point for the subroutine command.
package main

func main() {
	Execute()
}
