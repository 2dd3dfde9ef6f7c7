package domain

import (
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Workflow is a registered CI workflow definition. The YAML the workflow was
// registered from is kept verbatim in RawSpec; Spec is the parsed form.
type Workflow struct {
	ID          uuid.UUID    `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	RawSpec     string       `json:"-"`
	Spec        WorkflowSpec `json:"spec"`
}

type WorkflowSpec struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	On          TriggerSpec       `yaml:"on" json:"on"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Matrix      MatrixSpec        `yaml:"matrix,omitempty" json:"matrix,omitempty"`
	Steps       []StepSpec        `yaml:"steps" json:"steps"`
}

type TriggerSpec struct {
	Push        *BranchFilter `yaml:"push,omitempty" json:"push,omitempty"`
	PullRequest *BranchFilter `yaml:"pull_request,omitempty" json:"pull_request,omitempty"`
}

// BranchFilter lists branch patterns a trigger applies to. Patterns use
// path.Match syntax ("main", "releases/*"). An empty list matches any branch.
type BranchFilter struct {
	Branches []string `yaml:"branches,omitempty" json:"branches,omitempty"`
}

// MatrixSpec is a set of named axes plus optional excludes. The YAML form puts
// axes directly under "matrix" with "exclude" as a reserved key:
//
//	matrix:
//	  go-version: ["1.23", "1.24"]
//	  os: [ubuntu-latest, macos-latest, windows-latest]
//	  exclude:
//	    - go-version: "1.23"
//	      os: windows-latest
type MatrixSpec struct {
	Exclude []map[string]string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Axes    map[string][]string `yaml:",inline" json:"axes,omitempty"`
}

type StepSpec struct {
	Name            string            `yaml:"name" json:"name"`
	Run             string            `yaml:"run" json:"run"`
	Env             map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	TimeoutMinutes  int               `yaml:"timeout-minutes,omitempty" json:"timeout_minutes,omitempty"`
	ContinueOnError bool              `yaml:"continue-on-error,omitempty" json:"continue_on_error,omitempty"`
}

// ParseWorkflowSpec parses and validates a YAML workflow definition. Malformed
// YAML is reported as ErrInvalidSpec so callers can treat it as client input.
func ParseWorkflowSpec(data []byte) (*WorkflowSpec, error) {
	var spec WorkflowSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *WorkflowSpec) Validate() error {
	if s.Name == "" {
		return ErrInvalidWorkflowName
	}
	if s.On.Push == nil && s.On.PullRequest == nil {
		return ErrNoTriggers
	}
	if len(s.Steps) == 0 {
		return ErrNoSteps
	}
	for _, step := range s.Steps {
		if step.Run == "" {
			return ErrStepMissingRun
		}
	}
	for _, values := range s.Matrix.Axes {
		if len(values) == 0 {
			return ErrEmptyMatrixAxis
		}
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			if seen[v] {
				return ErrDuplicateAxisValue
			}
			seen[v] = true
		}
	}
	if len(s.Matrix.Axes) > 0 && len(ExpandMatrix(s.Matrix)) == 0 {
		return ErrEmptyMatrix
	}
	return nil
}

// Matches reports whether the workflow's triggers accept the event.
// Push events are matched against the pushed branch; pull_request events
// against the target branch of the pull request.
func (s *WorkflowSpec) Matches(ev Event) bool {
	switch ev.Type {
	case EventPush:
		return s.On.Push != nil && s.On.Push.matches(ev.Branch)
	case EventPullRequest:
		return s.On.PullRequest != nil && s.On.PullRequest.matches(ev.TargetBranch)
	default:
		return false
	}
}

func (f *BranchFilter) matches(branch string) bool {
	if len(f.Branches) == 0 {
		return true
	}
	for _, pattern := range f.Branches {
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// StepTimeout returns the step's timeout, falling back to def when unset.
func (st StepSpec) StepTimeout(def time.Duration) time.Duration {
	if st.TimeoutMinutes > 0 {
		return time.Duration(st.TimeoutMinutes) * time.Minute
	}
	return def
}

func GenerateSlug(name string) string {
	slug := ""
	for _, ch := range name {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '-' {
			slug += string(ch)
		} else if ch >= 'A' && ch <= 'Z' {
			slug += string(ch + 32)
		} else if ch == ' ' || ch == '_' {
			slug += "-"
		}
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return slug
}
