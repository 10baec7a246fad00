// Package document describes a minimal document store: named
// collections of JSON documents that support keyed upserts and
// filtered, sorted searches. Drivers live in sub-packages and are
// selected by name through the plugins package.
package document
