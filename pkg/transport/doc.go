// ABOUTME: Transport contract package
// ABOUTME: Separates the discovery core from the multicast DNS implementation
// Package transport defines what the discovery core needs from a multicast
// DNS responder: browsing with added/resolved/removed callbacks and
// publishing announcements that can be withdrawn.
//
// The multicast subpackage provides the implementation used by default.
// Tests and embedders may supply their own Browser or Publisher.
package transport
