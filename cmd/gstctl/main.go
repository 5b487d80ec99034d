// Command gstctl administers a gstledger installation: schema migrations,
// demo data, offline report runs and stock ledger verification.
package main

func main() {
	Execute()
}
