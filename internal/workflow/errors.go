package workflow

import "fmt"

// TemplateLoadError reports a workflow template that is missing, unreadable
// or not well-formed JSON
type TemplateLoadError struct {
	Path string
	Err  error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("failed to load workflow template %s: %v", e.Path, e.Err)
}

func (e *TemplateLoadError) Unwrap() error {
	return e.Err
}

// MissingNodeError reports a required node title absent from a template
type MissingNodeError struct {
	Title string
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("workflow template has no node titled %q", e.Title)
}
