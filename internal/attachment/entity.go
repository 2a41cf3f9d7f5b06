package attachment

import "time"

// Attachment is file metadata registered against a task. The engine tracks
// counts for the completion guard; the bytes themselves live in an external
// store referenced by StorageKey.
type Attachment struct {
	ID          string    `yaml:"id" json:"attachment_id"`
	TaskID      string    `yaml:"task_id" json:"task_id"`
	FileName    string    `yaml:"file_name" json:"file_name"`
	ContentType string    `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Size        int64     `yaml:"size" json:"size"`
	StorageKey  string    `yaml:"storage_key,omitempty" json:"storage_key,omitempty"`
	UploadedBy  string    `yaml:"uploaded_by" json:"uploaded_by"`
	UploadedAt  time.Time `yaml:"uploaded_at" json:"uploaded_at"`
}
