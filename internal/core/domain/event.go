package domain

type EventType string

const (
	EventPush        EventType = "push"
	EventPullRequest EventType = "pull_request"
)

// Event is a repository event delivered to the webhook endpoint.
// Branch carries the pushed branch for push events and the source branch for
// pull requests; TargetBranch is only set for pull requests.
type Event struct {
	Type         EventType `json:"type"`
	Branch       string    `json:"branch"`
	TargetBranch string    `json:"target_branch,omitempty"`
	CommitSHA    string    `json:"commit_sha"`
	Sender       string    `json:"sender,omitempty"`
}

func (e Event) Validate() error {
	switch e.Type {
	case EventPush:
		if e.Branch == "" {
			return ErrMissingBranch
		}
	case EventPullRequest:
		if e.TargetBranch == "" {
			return ErrMissingBranch
		}
	default:
		return ErrUnsupportedEvent
	}
	return nil
}
