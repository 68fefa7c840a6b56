// Package mediatypes defines the supported media file extensions and their
// classification into images and videos. Extension matching is always done on
// the lowercased extension including the leading dot.
package mediatypes
