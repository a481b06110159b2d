package pam

import "time"

type PortMap struct {
	Version   string         `json:"version"`
	Ports     map[string]int `json:"ports"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
