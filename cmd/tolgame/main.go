// Command tolgame runs the development ledger and drives game lifecycle
// actions against it.
package main

func main() {
	Execute()
}
