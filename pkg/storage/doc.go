// Package storage holds portfolio icon blobs. Icons are content-addressed
// by SHA-256, so re-uploading the same image is free and references never
// dangle after an overwrite. Two backends exist: local filesystem for
// development and S3 (or any S3-compatible endpoint) for production.
package storage
