package bridge

import "fmt"

// ErrorKind classifies a project layout problem.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindNotADirectory
	KindEntryMissing
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNotADirectory:
		return "not_a_directory"
	case KindEntryMissing:
		return "entry_missing"
	default:
		return "unknown"
	}
}

// ConfigError reports an invalid project layout. Field is the option name
// as users know it (projectRoot, srcEntryFile) and Value is what they set,
// not the resolved path.
type ConfigError struct {
	Kind  ErrorKind
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	var what string
	switch e.Kind {
	case KindNotADirectory:
		what = "is not a folder"
	default:
		what = "does not exist"
	}
	return fmt.Sprintf("[%s] %s: %s %s", Name, e.Field, e.Value, what)
}

// Permanent reports that retrying cannot fix a layout error.
func (e *ConfigError) Permanent() bool { return true }
