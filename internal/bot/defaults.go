package bot

import "strings"

// prompt defaults applied when a requester has no stored override
const (
	DefaultPositivePrompt = "Hatsune Miku,limited palette,black background,colorful,vibrant,glowing outline,neon,blacklight,looking at viewer, masterpiece, very aesthetic"

	DefaultNegativePrompt = "worst quality,bad quality,bad hands,very displeasing,extra digit,fewer digits,jpeg artifacts,signature,username,reference,mutated,lineup,manga,comic,disembodied,turnaround,2koma,4koma,monster,text,bad foreshortening,,logo,bad anatomy,bad perspective,bad proportions,artistic error,anatomical nonsense,amateur,out of frame,multiple views,"
)

// appendPrompt joins an addition onto a base prompt, inserting a comma when
// the base does not already end with one
func appendPrompt(base, addition string) string {
	base = strings.TrimSpace(base)
	addition = strings.TrimSpace(addition)
	if base == "" {
		return addition
	}
	if strings.HasSuffix(base, ",") {
		return base + " " + addition
	}
	return base + ", " + addition
}
