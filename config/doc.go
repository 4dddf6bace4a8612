// Package config loads veritas settings from a TOML file.
//
// Every key is optional. Load starts from Default and overlays whatever the
// file sets, so a file only needs the values that differ:
//
//	[storage]
//	path = "~/.veritas/data"
//
//	[ai]
//	host = "http://localhost:11434"
//	primary_model = "llama3.1:8b"
//
//	[generation]
//	call_timeout = "45s"
//
// Web verification of low-confidence answers stays off until a SearXNG
// instance is named:
//
//	[web]
//	searxng_url = "http://localhost:8082"
package config
