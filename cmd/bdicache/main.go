// Command bdicache estimates BDI compression and replays access traces
// through a compressed cache bank.
package main

func main() {
	Execute()
}
