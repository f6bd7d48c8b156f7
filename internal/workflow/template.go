package workflow

import (
	"encoding/json"
	"math/rand"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
)

// seed bounds match the backend's exclusive maximum; do not widen to 2^32
const (
	seedMin = 1
	seedMax = 4294967294
)

// Template holds a validated workflow template. The raw document is read once
// at construction; every Load call unmarshals a fresh Graph so no mutation
// from one request can leak into the next.
type Template struct {
	path   string
	mode   Mode
	raw    []byte
	logger *logrus.Logger
}

// NewTemplate reads and validates the template file for the given mode
func NewTemplate(path string, mode Mode) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}

	// parse once up front so a malformed template fails at startup rather
	// than on the first request
	var probe Graph
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}

	return &Template{
		path:   path,
		mode:   mode,
		raw:    raw,
		logger: config.NewLogger(),
	}, nil
}

// Mode returns the generation mode this template serves
func (t *Template) Mode() Mode {
	return t.mode
}

// Load returns a fresh deep copy of the template graph
func (t *Template) Load() (Graph, error) {
	var graph Graph
	if err := json.Unmarshal(t.raw, &graph); err != nil {
		return nil, &TemplateLoadError{Path: t.path, Err: err}
	}
	return graph, nil
}

// LocateNodes scans node titles and returns a mapping of title to node id for
// every title in titles. A missing title yields a MissingNodeError.
func LocateNodes(graph Graph, titles []string) (map[string]string, error) {
	found := make(map[string]string, len(titles))
	for id, node := range graph {
		for _, title := range titles {
			if node.Title() == title {
				found[title] = id
			}
		}
	}
	for _, title := range titles {
		if _, ok := found[title]; !ok {
			return nil, &MissingNodeError{Title: title}
		}
	}
	return found, nil
}

// TitleIndex returns a mapping of node id to display title for every node in
// the graph, used to resolve "executing" events into step labels.
func TitleIndex(graph Graph) map[string]string {
	index := make(map[string]string, len(graph))
	for id, node := range graph {
		title := node.Title()
		if title == "" {
			title = "Node " + id
		}
		index[id] = title
	}
	return index
}

// Params carries the request fields the mutator writes into a graph
type Params struct {
	Positive string
	Negative string
	Size     Size
	Mode     Mode
	Denoise  float64
	// InputImage is the server-assigned filename of the uploaded source
	// image; img2img only.
	InputImage string
}

// Apply rewrites the graph's input fields for one generation call and returns
// the located title to node id mapping. Node topology is left untouched.
//
// Every node carrying a "seed" input receives the same freshly drawn seed so
// all stochastic steps of one generation stay consistent. A template with no
// seed inputs keeps its built-in defaults; that is logged but not an error.
func (t *Template) Apply(graph Graph, params Params) (map[string]string, error) {
	nodes, err := LocateNodes(graph, RequiredTitles(params.Mode))
	if err != nil {
		return nil, err
	}

	graph[nodes[TitlePositivePrompt]].Inputs["text"] = params.Positive
	graph[nodes[TitleNegativePrompt]].Inputs["text"] = params.Negative

	width, height := params.Size.Dimensions()
	switch params.Mode {
	case ModeImg2Img:
		resize := graph[nodes[TitleLatentResize]]
		resize.Inputs["width"] = width
		resize.Inputs["height"] = height

		graph[nodes[TitleLoadImage]].Inputs["image"] = params.InputImage

		// the sampler is optional; without it the template's baked-in
		// denoise applies
		if sampler, err := LocateNodes(graph, []string{TitleKSampler}); err == nil {
			graph[sampler[TitleKSampler]].Inputs["denoise"] = params.Denoise
			nodes[TitleKSampler] = sampler[TitleKSampler]
		}
	default:
		latent := graph[nodes[TitleEmptyLatent]]
		latent.Inputs["width"] = width
		latent.Inputs["height"] = height
	}

	seed := seedMin + rand.Int63n(seedMax-seedMin+1)
	seeded := 0
	for _, node := range graph {
		if _, ok := node.Inputs["seed"]; ok {
			node.Inputs["seed"] = seed
			seeded++
		}
	}
	if seeded == 0 {
		t.logger.WithField("template", t.path).Warn("No seed inputs found, template defaults will be used")
	} else {
		t.logger.WithFields(logrus.Fields{
			"seed":  seed,
			"nodes": seeded,
		}).Debug("Seed applied to workflow")
	}

	return nodes, nil
}
