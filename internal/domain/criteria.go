package domain

// Criterion is a single weighted item in an evaluation rubric.
type Criterion struct {
	// Name is the short identifier of the criterion, e.g. "accuracy".
	Name string `yaml:"name" json:"name" validate:"required"`

	// Weight expresses relative importance on a 1-5 scale.
	Weight int `yaml:"weight" json:"weight" validate:"required,min=1,max=5"`

	// Description tells judges what to look for.
	Description string `yaml:"description" json:"description"`
}

// Criteria is an immutable rubric supplied by the caller. The judging
// engine references it when building judge prompts and never mutates it.
type Criteria struct {
	// ID uniquely identifies the rubric.
	ID string `yaml:"id" json:"id"`

	// Label is the rubric's display name.
	Label string `yaml:"label" json:"label"`

	// Description summarizes what the rubric evaluates.
	Description string `yaml:"description" json:"description"`

	// Items are the weighted criteria judges score against.
	Items []Criterion `yaml:"items" json:"items" validate:"dive"`
}

// Empty reports whether the rubric has no items to score against.
func (c Criteria) Empty() bool { return len(c.Items) == 0 }

// DefaultCriteria returns the rubric used when the caller supplies none.
func DefaultCriteria() Criteria {
	return Criteria{
		ID:          "general",
		Label:       "General quality",
		Description: "Overall response quality",
		Items: []Criterion{
			{Name: "accuracy", Weight: 5, Description: "Factual correctness of the response"},
			{Name: "completeness", Weight: 4, Description: "Coverage of everything the prompt asks for"},
			{Name: "clarity", Weight: 3, Description: "Organization and readability"},
		},
	}
}
