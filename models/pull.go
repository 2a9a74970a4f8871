package models

import "time"

// PullRequest is a change request on a hosting platform. GitLab merge
// requests map onto the same shape, with Number holding the MR IID.
type PullRequest struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	State        string    `json:"state"` // open | closed | merged
	BaseRef      string    `json:"base_ref"`
	HeadRef      string    `json:"head_ref"`
	HeadSHA      string    `json:"head_sha"`
	HeadCloneURL string    `json:"head_clone_url"`
	HTMLURL      string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChangedFile is one file touched by a pull request.
type ChangedFile struct {
	Path      string `json:"path"`
	Status    string `json:"status"` // added | modified | removed | renamed
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}
