package interval

import "fmt"

// ByName resolves the configured interval module name ("day" or
// "hour") to its Codec. Additional variants can register themselves
// here; the set is process-wide per spec.md §5.
func ByName(name string) (Codec, error) {
	switch name {
	case "day", "":
		return Day{}, nil
	case "hour":
		return Hour{}, nil
	default:
		return nil, fmt.Errorf("interval: unknown module %q", name)
	}
}
