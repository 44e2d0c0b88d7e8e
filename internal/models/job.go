package models

// Credentials holds login details for a job's remote surface.
// Values are typed into the login form by the pipeline, never logged.
type Credentials struct {
	Username string `toml:"username" yaml:"username" json:"username"`
	Password string `toml:"password" yaml:"password" json:"-"`
}

// Job identifies one independent extraction target (one league to sync).
// Jobs are immutable once scheduled and created from static configuration.
type Job struct {
	ID          string       `toml:"id" yaml:"id" json:"id" validate:"required"`
	DisplayName string       `toml:"display_name" yaml:"display_name" json:"display_name"`
	SourceURL   string       `toml:"source_url" yaml:"source_url" json:"source_url" validate:"required,url"`
	Priority    int          `toml:"priority" yaml:"priority" json:"priority"` // lower runs first
	Credentials *Credentials `toml:"credentials" yaml:"credentials" json:"credentials,omitempty"`
}

// Name returns the display name, falling back to the job ID.
func (j Job) Name() string {
	if j.DisplayName != "" {
		return j.DisplayName
	}
	return j.ID
}
