// Package notification decodes frames received on the push channel into typed notifications, and
// contains the payload decompression and key hashing helpers that those notifications rely on.
package notification
