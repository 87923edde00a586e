// Package library is the boundary to the external media library.
//
// The Client interface carries exactly the operations the pipeline needs:
// listing items with art/unique-id properties, reading and writing one item's
// art map, probing cached texture dimensions, and forcing a texture into the
// cache. The JSON-RPC implementation targets Kodi-compatible endpoints and
// unwraps the image:// VFS encoding at this boundary so every other package
// works with plain artwork URLs.
package library
