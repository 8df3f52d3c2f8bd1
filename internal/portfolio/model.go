package portfolio

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type Profile struct {
	ID        string
	Name      string
	JobTitle  string
	Bio       string
	AvatarURL string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName falls back to the email when no name was set.
func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// Initial is shown in place of a missing avatar.
func (p Profile) Initial() string {
	for _, r := range p.DisplayName() {
		return strings.ToUpper(string(r))
	}
	return "?"
}

type Project struct {
	ID          string
	UserID      string
	Name        string
	Description string
	DemoURL     string
	RepoURL     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileInput is the editable part of a profile. The email always comes
// from the session.
type ProfileInput struct {
	Name     string `form:"name"`
	JobTitle string `form:"job_title"`
	Bio      string `form:"bio"`
}

func (in ProfileInput) normalized() ProfileInput {
	in.Name = strings.TrimSpace(in.Name)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.Bio = strings.TrimSpace(in.Bio)
	return in
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Length(0, 120)),
		validation.Field(&in.JobTitle, validation.Length(0, 120)),
		validation.Field(&in.Bio, validation.Length(0, 4000)),
	)
}

type ProjectInput struct {
	Name        string `form:"name"`
	Description string `form:"description"`
	DemoURL     string `form:"demo_url"`
	RepoURL     string `form:"repo_url"`
}

func (in ProjectInput) normalized() ProjectInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.DemoURL = strings.TrimSpace(in.DemoURL)
	in.RepoURL = strings.TrimSpace(in.RepoURL)
	return in
}

func (in ProjectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 4000)),
		validation.Field(&in.DemoURL, is.URL),
		validation.Field(&in.RepoURL, is.URL),
	)
}
