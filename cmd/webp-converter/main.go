package main

// main is the entry point for webp-converter. Build-time variables live in
// root.go and are set via -ldflags.
func main() {
	Execute()
}
