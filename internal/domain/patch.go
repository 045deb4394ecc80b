package domain

// TaskPatch is a sparse update to a task. A nil field was absent from the
// request and leaves the stored value untouched.
type TaskPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Priority    *string     `json:"priority,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	Category    *string     `json:"category,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch sets no fields.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.Category == nil && p.Tags == nil
}

// Fields lists the names of the fields present in the patch.
func (p TaskPatch) Fields() []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.Category != nil {
		fields = append(fields, "category")
	}
	if p.Tags != nil {
		fields = append(fields, "tags")
	}
	return fields
}

// Validate checks the fields present in the patch.
func (p TaskPatch) Validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return NewValidationError("status", "must be a known status", ErrInvalidStatus)
	}
	return nil
}

// Apply returns a copy of task with the patch's present fields overwritten.
// The input task is not modified.
func (p TaskPatch) Apply(task Task) (Task, error) {
	if err := p.Validate(); err != nil {
		return Task{}, err
	}

	out := task.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Tags != nil {
		out.Tags = NormalizeTags(*p.Tags)
	}
	return out, nil
}
