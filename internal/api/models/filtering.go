package models

// FilteringEntriesResponse reports the size of the currently active
// policy (its exact-match and wildcard-base sets) and the sources it
// was built from, not its contents — the admin API is read-oriented,
// not an editor.
type FilteringEntriesResponse struct {
	Count       int      `json:"count"`
	CustomList  string   `json:"custom_list,omitempty"`
	LocalLists  []string `json:"local_lists,omitempty"`
	RemoteLists []string `json:"remote_lists,omitempty"`
}
