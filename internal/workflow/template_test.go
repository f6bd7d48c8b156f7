package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const txt2imgFixture = `{
  "1": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Positive Prompt Loader"}},
  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Negative Prompt Loader"}},
  "3": {"class_type": "EmptyLatentImage", "inputs": {"width": 512, "height": 512, "batch_size": 1}, "_meta": {"title": "Empty latent"}},
  "4": {"class_type": "KSampler", "inputs": {"seed": 0, "steps": 28, "denoise": 1.0}, "_meta": {"title": "KSampler"}},
  "5": {"class_type": "SaveImage", "inputs": {"filename_prefix": "out"}, "_meta": {"title": "Save"}}
}`

const img2imgFixture = `{
  "1": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Positive Prompt Loader"}},
  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Negative Prompt Loader"}},
  "3": {"class_type": "LoadImage", "inputs": {"image": ""}, "_meta": {"title": "Load image"}},
  "4": {"class_type": "LatentUpscale", "inputs": {"width": 512, "height": 512}, "_meta": {"title": "Latent resize"}},
  "5": {"class_type": "KSampler", "inputs": {"seed": 0, "steps": 28, "denoise": 1.0}, "_meta": {"title": "KSampler"}}
}`

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewTemplateMissingFile(t *testing.T) {
	_, err := NewTemplate(filepath.Join(t.TempDir(), "nope.json"), ModeTxt2Img)
	require.Error(t, err)

	var loadErr *TemplateLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Path, "nope.json")
}

func TestNewTemplateMalformedJSON(t *testing.T) {
	path := writeTemplate(t, `{"1": {`)
	_, err := NewTemplate(path, ModeTxt2Img)

	var loadErr *TemplateLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadReturnsFreshCopies(t *testing.T) {
	tmpl, err := NewTemplate(writeTemplate(t, txt2imgFixture), ModeTxt2Img)
	require.NoError(t, err)

	first, err := tmpl.Load()
	require.NoError(t, err)
	first["1"].Inputs["text"] = "mutated"

	second, err := tmpl.Load()
	require.NoError(t, err)
	assert.Equal(t, "", second["1"].Inputs["text"], "mutation must not leak between loads")
}

func TestApplyTxt2Img(t *testing.T) {
	tmpl, err := NewTemplate(writeTemplate(t, txt2imgFixture), ModeTxt2Img)
	require.NoError(t, err)

	graph, err := tmpl.Load()
	require.NoError(t, err)

	nodes, err := tmpl.Apply(graph, Params{
		Positive: "1girl, masterpiece",
		Negative: "lowres",
		Size:     SizeSquare,
		Mode:     ModeTxt2Img,
	})
	require.NoError(t, err)

	assert.Equal(t, "1girl, masterpiece", graph[nodes[TitlePositivePrompt]].Inputs["text"])
	assert.Equal(t, "lowres", graph[nodes[TitleNegativePrompt]].Inputs["text"])

	latent := graph[nodes[TitleEmptyLatent]]
	assert.Equal(t, 1024, latent.Inputs["width"])
	assert.Equal(t, 1024, latent.Inputs["height"])

	// topology untouched
	assert.Len(t, graph, 5)
}

func TestApplySeedConsistency(t *testing.T) {
	fixture := `{
	  "1": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Positive Prompt Loader"}},
	  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Negative Prompt Loader"}},
	  "3": {"class_type": "EmptyLatentImage", "inputs": {"width": 512, "height": 512}, "_meta": {"title": "Empty latent"}},
	  "4": {"class_type": "KSampler", "inputs": {"seed": 0}, "_meta": {"title": "KSampler"}},
	  "5": {"class_type": "KSamplerAdvanced", "inputs": {"seed": 0}, "_meta": {"title": "Refiner"}}
	}`
	tmpl, err := NewTemplate(writeTemplate(t, fixture), ModeTxt2Img)
	require.NoError(t, err)

	graph, err := tmpl.Load()
	require.NoError(t, err)
	_, err = tmpl.Apply(graph, Params{Size: SizeVertical, Mode: ModeTxt2Img})
	require.NoError(t, err)

	first := graph["4"].Inputs["seed"]
	second := graph["5"].Inputs["seed"]
	assert.Equal(t, first, second, "all seed inputs of one call share the seed")

	seed, ok := first.(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, seed, int64(1))
	assert.LessOrEqual(t, seed, int64(4294967294))
}

func TestApplyDrawsNewSeedPerCall(t *testing.T) {
	tmpl, err := NewTemplate(writeTemplate(t, txt2imgFixture), ModeTxt2Img)
	require.NoError(t, err)

	seeds := make(map[interface{}]bool)
	for i := 0; i < 8; i++ {
		graph, err := tmpl.Load()
		require.NoError(t, err)
		_, err = tmpl.Apply(graph, Params{Size: SizeVertical, Mode: ModeTxt2Img})
		require.NoError(t, err)
		seeds[graph["4"].Inputs["seed"]] = true
	}
	assert.Greater(t, len(seeds), 1, "consecutive calls should not repeat one seed")
}

func TestApplyNoSeedInputsIsNotAnError(t *testing.T) {
	fixture := `{
	  "1": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Positive Prompt Loader"}},
	  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Negative Prompt Loader"}},
	  "3": {"class_type": "EmptyLatentImage", "inputs": {"width": 512, "height": 512}, "_meta": {"title": "Empty latent"}}
	}`
	tmpl, err := NewTemplate(writeTemplate(t, fixture), ModeTxt2Img)
	require.NoError(t, err)

	graph, err := tmpl.Load()
	require.NoError(t, err)
	_, err = tmpl.Apply(graph, Params{Size: SizeVertical, Mode: ModeTxt2Img})
	assert.NoError(t, err)
}

func TestApplyImg2Img(t *testing.T) {
	tmpl, err := NewTemplate(writeTemplate(t, img2imgFixture), ModeImg2Img)
	require.NoError(t, err)

	graph, err := tmpl.Load()
	require.NoError(t, err)

	nodes, err := tmpl.Apply(graph, Params{
		Positive:   "landscape",
		Negative:   "blurry",
		Size:       SizeHorizontal,
		Mode:       ModeImg2Img,
		Denoise:    0.55,
		InputImage: "input_123.png",
	})
	require.NoError(t, err)

	assert.Equal(t, "input_123.png", graph[nodes[TitleLoadImage]].Inputs["image"])

	resize := graph[nodes[TitleLatentResize]]
	assert.Equal(t, 1216, resize.Inputs["width"])
	assert.Equal(t, 832, resize.Inputs["height"])

	assert.Equal(t, 0.55, graph[nodes[TitleKSampler]].Inputs["denoise"])
}

func TestApplyImg2ImgWithoutSampler(t *testing.T) {
	fixture := `{
	  "1": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Positive Prompt Loader"}},
	  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Negative Prompt Loader"}},
	  "3": {"class_type": "LoadImage", "inputs": {"image": ""}, "_meta": {"title": "Load image"}},
	  "4": {"class_type": "LatentUpscale", "inputs": {"width": 512, "height": 512}, "_meta": {"title": "Latent resize"}}
	}`
	tmpl, err := NewTemplate(writeTemplate(t, fixture), ModeImg2Img)
	require.NoError(t, err)

	graph, err := tmpl.Load()
	require.NoError(t, err)
	_, err = tmpl.Apply(graph, Params{Size: SizeVertical, Mode: ModeImg2Img, Denoise: 0.7, InputImage: "x.png"})
	assert.NoError(t, err, "missing sampler falls back to template denoise")
}

func TestApplyMissingRequiredNode(t *testing.T) {
	fixture := `{
	  "1": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Positive Prompt Loader"}}
	}`
	tmpl, err := NewTemplate(writeTemplate(t, fixture), ModeTxt2Img)
	require.NoError(t, err)

	graph, err := tmpl.Load()
	require.NoError(t, err)
	_, err = tmpl.Apply(graph, Params{Size: SizeVertical, Mode: ModeTxt2Img})

	var missing *MissingNodeError
	require.ErrorAs(t, err, &missing)
}

func TestSizeDimensions(t *testing.T) {
	tests := []struct {
		size   Size
		width  int
		height int
	}{
		{SizeSquare, 1024, 1024},
		{SizeVertical, 832, 1216},
		{SizeHorizontal, 1216, 832},
		{Size("portrait"), 832, 1216}, // unknown falls back to vertical
		{Size(""), 832, 1216},
	}
	for _, tt := range tests {
		w, h := tt.size.Dimensions()
		assert.Equal(t, tt.width, w, "size %q width", tt.size)
		assert.Equal(t, tt.height, h, "size %q height", tt.size)
	}
}

func TestTitleIndexFallback(t *testing.T) {
	graph := Graph{
		"7":  {ClassType: "KSampler", Meta: NodeMeta{Title: "KSampler"}},
		"12": {ClassType: "VAEDecode"},
	}
	index := TitleIndex(graph)
	assert.Equal(t, "KSampler", index["7"])
	assert.Equal(t, "Node 12", index["12"])
}
