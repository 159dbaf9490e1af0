package models

import "time"

// Command is one entry of an agent's command menu.
type Command struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Description string `json:"description,omitempty"`
}

// Agent is a named methodology role with its command catalog.
type Agent struct {
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	Commands    []Command `json:"commands,omitempty"`
}

// RecentProject is one entry of the persisted recent-projects list.
type RecentProject struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	LastOpened time.Time `json:"lastOpened"`
}
