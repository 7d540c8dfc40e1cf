// Package network detects connectivity by probing a well-known URL and
// classifies the active link for Wi-Fi-only upload policies.
package network
