package interfaces

// Prompts per-requester prompt overrides. Empty fields mean "use defaults".
type Prompts struct {
	Positive string `json:"positive,omitempty"`
	Negative string `json:"negative,omitempty"`
}

// PromptStore persists per-requester prompt preferences
type PromptStore interface {
	// Get returns the requester's overrides; ok is false when none exist.
	Get(userID string) (p Prompts, ok bool, err error)

	// SetPositive / SetNegative replace one override.
	SetPositive(userID, prompt string) error
	SetNegative(userID, prompt string) error

	// ClearPositive / ClearNegative drop one override.
	ClearPositive(userID string) error
	ClearNegative(userID string) error
}

// Archiver optional side channel that stores generated images off-box
type Archiver interface {
	// Store writes one image under the given filename and returns the
	// remote location.
	Store(filename string, data []byte) (string, error)
}
