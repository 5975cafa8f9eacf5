package util

// Profile is one entry in the launcher profile registry
// (launcher_profiles.json). Only the fields the installer writes are
// modeled; unrelated entries in the registry are never touched.
type Profile struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Created       string `json:"created"`
	LastUsed      string `json:"lastUsed"`
	Icon          string `json:"icon"`
	LastVersionId string `json:"lastVersionId"`
}
