// Package configstore implements an append-only, versioned
// configuration store on top of a document datastore.
//
// Each write to a resource creates a new revision with the
// next version number. Revisions are stored under their own
// key and are never modified, so any past version can be read
// back. Writers of the same resource are serialized by a
// per-resource lock held in a lockmap.LockMap owned by the
// store. The lock only serializes writers within one process;
// processes sharing a datastore must not write the same
// resource concurrently.
package configstore
