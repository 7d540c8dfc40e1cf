// Package events provides the in-process publish/subscribe bus for upload
// lifecycle events plus a coarse change notifier for bulk observers.
package events
