package turntable

// ClipRef is an opaque handle to audio data owned by the sample player.
type ClipRef string

// Sample is one scratchable sound: a main clip played as a one-shot, and
// pre-rendered forward and backward scratch clips.
type Sample struct {
	DisplayName  string  `json:"name" yaml:"name" toml:"name"`
	MainClip     ClipRef `json:"main" yaml:"main" toml:"main"`
	ForwardClip  ClipRef `json:"forward" yaml:"forward" toml:"forward"`
	BackwardClip ClipRef `json:"backward" yaml:"backward" toml:"backward"`
}

func (s Sample) String() string { return s.DisplayName }

// Clips returns the three clip handles of the sample.
func (s Sample) Clips() []ClipRef {
	return []ClipRef{s.MainClip, s.ForwardClip, s.BackwardClip}
}

// Catalog is the ordered list of selectable samples. The first entry is the
// one loaded at startup.
type Catalog []Sample

// Find returns the index of the sample named name, or 0 when there is none.
func (c Catalog) Find(name string) int {
	for i, s := range c {
		if s.DisplayName == name {
			return i
		}
	}
	return 0
}

// Names returns the display names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.DisplayName
	}
	return names
}
