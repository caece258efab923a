// Package config loads, validates and persists the coretex configuration
// file (~/.config/coretex/config.json).
//
// The file holds the user's Coretex credentials, the API server URL, the
// local storage path and the Coretex Node settings. It is read with
// github.com/tidwall/jsonc so hand-edited files may contain comments and
// trailing commas; it is always written back as plain indented JSON.
//
// Environment variables (CTX_API_URL, CTX_STORAGE_PATH, CTX_NODE_NAME,
// CTX_ORGANIZATION_ID) override the file values after loading, which is
// how CI jobs and the node container point the tool at another server.
package config
