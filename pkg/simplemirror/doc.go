// Package simplemirror mirrors externally hosted files into a CDN-backed
// object store and hands back a stable public URL for each source URL.
//
// A Mirrorer composes four pluggable pieces: a CacheStore remembering which
// source URLs were already mirrored, a Fetcher retrieving the original bytes,
// a BlobStore writing objects with public-read visibility, and a Verifier that
// reads the public URL back before an upload is trusted. Implementations live
// in subpackages (cache/memory, cache/postgres, cache/lru, storage/memory,
// storage/s3, fetch).
//
// Mirror Pipeline
//
// A single mirror runs CacheLookup, Fetch, Admit, Upload and CacheWrite in
// order. Every stage can short-circuit; Mirror reports that as "no result"
// rather than an error, so callers only ever see a public URL or nothing.
// MirrorAll fans a batch out over a small bounded worker pool and keeps the
// results index-aligned with the input.
//
// Object Keys
//
// Objects are written under {root}/{folder}/{subFolder}/{name}. The folder is
// the top-level MIME category guessed from the file extension ("any" when
// unknown); the sub folder is either "stable" or a YYYYMMDD bucket in UTC+7.
// Mirrored uploads use a fresh random name with a ".jpg" extension on every
// attempt.
package simplemirror
