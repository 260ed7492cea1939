package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType is an encoder behavior flag.
type OptionType string

// Encoder behavior flags.
const (
	OptionGeneratePTS        OptionType = "genpts"
	OptionIgnoreDTS          OptionType = "igndts"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionLowLatency         OptionType = "low_latency"
)

// Option describes a flag.
type Option struct {
	Key           OptionType   `json:"key"`
	Description   string       `json:"description"`
	AppDefault    bool         `json:"app_default"`
	Group         string       `json:"group,omitempty"`
	ConflictsWith []OptionType `json:"conflicts_with,omitempty"`
}

// AllOptions lists every supported flag.
var AllOptions = []Option{
	{
		Key:           OptionGeneratePTS,
		Description:   "Generate missing presentation timestamps",
		ConflictsWith: []OptionType{OptionWallclockTimestamp},
	},
	{
		Key:         OptionIgnoreDTS,
		Description: "Ignore decode timestamps",
	},
	{
		Key:           OptionWallclockTimestamp,
		Description:   "Stamp piped frames with the wall clock",
		AppDefault:    true,
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:         OptionThreadQueue1024,
		Description: "1024 packet input queue",
		AppDefault:  true,
		Group:       "thread_queue",
	},
	{
		Key:         OptionThreadQueue4096,
		Description: "4096 packet input queue",
		Group:       "thread_queue",
	},
	{
		Key:         OptionLowLatency,
		Description: "Flush packets immediately and disable reordering delay",
		AppDefault:  true,
	},
}

// GetOptionByKey returns the option for key, or nil.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// DefaultOptions returns the flags enabled unless configured otherwise.
func DefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// ParseOptions converts configured names into validated flags.
func ParseOptions(names []string) ([]OptionType, error) {
	options := make([]OptionType, 0, len(names))
	for _, name := range names {
		key := OptionType(strings.TrimSpace(name))
		if GetOptionByKey(key) == nil {
			return nil, fmt.Errorf("unknown encoder option %q", name)
		}
		options = append(options, key)
	}
	if err := ValidateOptions(options); err != nil {
		return nil, err
	}
	return options, nil
}

// ValidateOptions rejects two flags from one group and conflicting flags.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[string]OptionType)
	set := make(map[OptionType]bool, len(selected))
	for _, key := range selected {
		set[key] = true
		option := GetOptionByKey(key)
		if option == nil || option.Group == "" {
			continue
		}
		if prev, ok := groups[option.Group]; ok && prev != key {
			return fmt.Errorf("options %s and %s are mutually exclusive", prev, key)
		}
		groups[option.Group] = key
	}

	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			continue
		}
		for _, conflict := range option.ConflictsWith {
			if set[conflict] {
				return fmt.Errorf("option %s conflicts with %s", key, conflict)
			}
		}
	}
	return nil
}

// applyInputOptions writes the flags that precede -i.
func applyInputOptions(options []OptionType, cmd *strings.Builder) {
	var fflags []string
	for _, option := range options {
		switch option {
		case OptionGeneratePTS:
			fflags = append(fflags, "+genpts")
		case OptionIgnoreDTS:
			fflags = append(fflags, "+igndts")
		case OptionLowLatency:
			fflags = append(fflags, "+nobuffer")
		case OptionWallclockTimestamp:
			cmd.WriteString(" -use_wallclock_as_timestamps 1")
		case OptionThreadQueue1024:
			cmd.WriteString(" -thread_queue_size 1024")
		case OptionThreadQueue4096:
			cmd.WriteString(" -thread_queue_size 4096")
		}
	}
	if len(fflags) > 0 {
		cmd.WriteString(" -fflags " + strings.Join(fflags, ""))
	}
}

func isHardwareEncoder(codec string) bool {
	for _, hw := range []string{"nvenc", "vaapi", "qsv", "rkmpp", "v4l2m2m", "omx"} {
		if strings.Contains(codec, hw) {
			return true
		}
	}
	return false
}
