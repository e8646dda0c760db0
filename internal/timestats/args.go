package timestats

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/getsentry/timestats/internal/errorutil"
)

// MaxArgs is the number of arguments ParseArgs accepts.
const MaxArgs = 10

// ParseArgs runs an operator command. Recognized flags are -disable, -dump
// (with an optional -maxlayers N), -clear and -enable, applied in that order
// whatever their position. It returns the dump, if one was requested.
func (s *Service) ParseArgs(ctx context.Context, args []string, structured bool) ([]byte, error) {
	if len(args) > MaxArgs {
		s.logger.Debug().Int("args", len(args)).Msg("invalid args count")
		return nil, fmt.Errorf("%w: got %d, accept at most %d", errorutil.ErrTooManyArgs, len(args), MaxArgs)
	}

	// Keep the last position of every argument.
	positions := make(map[string]int, len(args))
	for i, arg := range args {
		positions[arg] = i
	}

	if _, ok := positions["-disable"]; ok {
		s.Disable()
	}

	var result []byte
	if _, ok := positions["-dump"]; ok {
		opts := DumpOptions{Structured: structured}
		if i, ok := positions["-maxlayers"]; ok && i+1 < len(args) {
			maxLayers := parseMaxLayers(args[i+1])
			opts.MaxLayers = &maxLayers
		}
		var err error
		result, err = s.Dump(ctx, opts)
		if err != nil {
			return nil, err
		}
	}

	if _, ok := positions["-clear"]; ok {
		s.Clear()
	}

	if _, ok := positions["-enable"]; ok {
		s.Enable()
	}

	return result, nil
}

// parseMaxLayers reads the leading base 10 integer of v, clamped to the
// uint32 range. Leading white space is skipped and anything unparsable is 0.
func parseMaxLayers(v string) uint32 {
	i := 0
	for i < len(v) && strings.IndexByte(" \t\n\v\f\r", v[i]) >= 0 {
		i++
	}
	negative := false
	if i < len(v) && (v[i] == '+' || v[i] == '-') {
		negative = v[i] == '-'
		i++
	}
	var n uint64
	for ; i < len(v) && v[i] >= '0' && v[i] <= '9'; i++ {
		n = n*10 + uint64(v[i]-'0')
		if n > math.MaxUint32 {
			n = math.MaxUint32 + 1
		}
	}
	switch {
	case negative:
		return 0
	case n > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(n)
	}
}
