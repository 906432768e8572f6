// Command lawcite sections legal documents and answers questions about them
// with inline citations.
package main

func main() {
	Execute()
}
