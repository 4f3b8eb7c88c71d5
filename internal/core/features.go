package core

// Features selects which parts of the shared page model are active. A
// disabled feature turns its operation into a no-op.
type Features struct {
	Fallback     bool `mapstructure:"fallback" json:"fallback"`
	Mute         bool `mapstructure:"mute" json:"mute"`
	Fullscreen   bool `mapstructure:"fullscreen" json:"fullscreen"`
	PublishLocal bool `mapstructure:"publish_local" json:"publish_local"`
}
