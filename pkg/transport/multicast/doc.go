// ABOUTME: Multicast DNS transport package
// ABOUTME: Browser and Publisher backed by hashicorp/mdns
// Package multicast implements the transport contract on top of
// github.com/hashicorp/mdns.
//
// hashicorp/mdns is query based, so the Browser runs query rounds per
// service type and derives added, resolved and removed events from them.
// An instance missing from MissLimit consecutive rounds is reported removed.
//
// The Publisher runs one responder per announcement and sends a goodbye
// packet (TTL 0) when an announcement is withdrawn.
package multicast
