package jobs

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ArgDummy           = "dummy"
	ArgRunSingleJobNow = "run_single_job_now"
)

var (
	ErrMalformedArgument = errors.New("argument not properly defined, use syntax like 'key=value'")
	ErrUnknownArgument   = errors.New("unknown argument key")
)

// Argument is one parsed key=value token. Keys are lower-cased, values kept verbatim.
type Argument struct {
	Key   string
	Value string
}

// ParseArguments parses os.Args-style tokens. The first token is the program name and is ignored.
// Parsing stops at the first malformed token or unknown key.
func ParseArguments(args []string) ([]Argument, error) {
	if len(args) <= 1 {
		return nil, nil
	}

	parsed := make([]Argument, 0, len(args)-1)
	for _, token := range args[1:] {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return parsed, fmt.Errorf("%w: %q", ErrMalformedArgument, token)
		}

		key = strings.ToLower(key)
		switch key {
		case ArgDummy, ArgRunSingleJobNow:
			parsed = append(parsed, Argument{Key: key, Value: value})
		default:
			return parsed, fmt.Errorf("%w: %s", ErrUnknownArgument, key)
		}
	}
	return parsed, nil
}
