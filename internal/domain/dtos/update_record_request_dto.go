package dtos

// UpdateRecordRequest carries a partial update. Nil fields are left untouched.
type UpdateRecordRequest struct {
	ParseState

	Content           *string   `json:"content,omitempty"`
	ChangeDescription string    `json:"changeDescription" validate:"max=1000"`
	Title             *string   `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description       *string   `json:"description,omitempty" validate:"omitempty,max=4000"`
	Tags              *[]string `json:"tags,omitempty" validate:"omitempty,max=50,dive,required,max=64"`
}
