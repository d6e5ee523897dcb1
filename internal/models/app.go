package models

import "encoding/json"

// AppRecord is one registered application inside a collection, keyed by
// origin. last_modified is assigned by the server on every write; the
// remaining fields are client metadata stored verbatim.
type AppRecord struct {
	Origin        string          `json:"origin"`
	LastModified  int64           `json:"last_modified"`
	ManifestPath  string          `json:"manifest_path,omitempty"`
	InstallOrigin string          `json:"install_origin,omitempty"`
	InstallData   json.RawMessage `json:"install_data,omitempty"`
	InstallTime   int64           `json:"install_time,omitempty"`
	Hidden        bool            `json:"hidden,omitempty"`
}
