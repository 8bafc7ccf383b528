// Package main provides the entry point for the redfishscan CLI.
//
// redfishscan walks the hypermedia graph of Redfish management services
// (BMCs), records every resource it finds, collects log entries, applies
// bulk writes and compares runs over time.
//
// Usage:
//
//	redfishscan inventory https://10.0.0.5
//	redfishscan logs --all
//	redfishscan action --filter '/redfish/v1/Systems/*' --method PATCH --body '{"AssetTag":"r1"}' rack1
//	redfishscan compare rack1
//
// See --help for all available options.
package main

func main() {
	Execute()
}
