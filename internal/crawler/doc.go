// Package crawler defines the fetch contracts shared by the listing clients,
// the downloader and their tests, plus the HTTP error snippet rule used in
// every failure message.
package crawler
