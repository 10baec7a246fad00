// Package kv provides an interface for implementing
// kv drivers that can be used to build more complex storage
// interfaces.
//
// A store contains zero or more named buckets and each bucket
// is a sorted map of keys to values. All reads and writes happen
// inside a transaction. Writable transactions are serialized
// against each other, while read-only transactions observe a
// consistent snapshot of the store as of the moment they began
// and never block writers.
//
//  - Store
//    - Bucket A
//      - key1: abc
//      - key2: def
//    - Bucket B
//      - keyN: aaa
//
// Two drivers are provided: BBoltStore persists to a single file
// and MemoryStore keeps everything in memory.
package kv
