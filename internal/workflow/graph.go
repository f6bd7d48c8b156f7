package workflow

// Graph is a serialized ComfyUI workflow in API format: a mapping of opaque
// node id to node definition. Node topology is never modified by this package,
// only
// input field values.
type Graph map[string]*Node

// Node one step in the workflow graph
type Node struct {
	ClassType string                 `json:"class_type"`
	Inputs    map[string]interface{} `json:"inputs"`
	Meta      NodeMeta               `json:"_meta"`
}

// NodeMeta node metadata carrying the human readable title. Titles are the
// late-binding contract between template authors and this code.
type NodeMeta struct {
	Title string `json:"title"`
}

// Title returns the node's display title, or empty when unset
func (n *Node) Title() string {
	return n.Meta.Title
}

// Mode selects which workflow template a request runs against
type Mode string

const (
	ModeTxt2Img Mode = "txt2img"
	ModeImg2Img Mode = "img2img"
)

// Size image size preset
type Size string

const (
	SizeSquare     Size = "square"
	SizeVertical   Size = "vertical"
	SizeHorizontal Size = "horizontal"
)

// Dimensions maps a size preset to exact pixel dimensions. Unknown presets
// fall back to vertical.
func (s Size) Dimensions() (width, height int) {
	switch s {
	case SizeSquare:
		return 1024, 1024
	case SizeHorizontal:
		return 1216, 832
	case SizeVertical:
		return 832, 1216
	default:
		return 832, 1216
	}
}

// node titles the mutator binds to
const (
	TitlePositivePrompt = "Positive Prompt Loader"
	TitleNegativePrompt = "Negative Prompt Loader"
	TitleEmptyLatent    = "Empty latent"
	TitleLoadImage      = "Load image"
	TitleLatentResize   = "Latent resize"
	TitleKSampler       = "KSampler"
)

// RequiredTitles returns the node titles a template must provide for the
// given mode. The KSampler title is intentionally absent for img2img; denoise
// is applied opportunistically when the node exists.
func RequiredTitles(mode Mode) []string {
	switch mode {
	case ModeImg2Img:
		return []string{TitlePositivePrompt, TitleNegativePrompt, TitleLoadImage, TitleLatentResize}
	default:
		return []string{TitlePositivePrompt, TitleNegativePrompt, TitleEmptyLatent}
	}
}
