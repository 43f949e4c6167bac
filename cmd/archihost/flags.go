package main

import "flag"

// newFlagSet builds the flag.FlagSet archihost parses argv with. Kept in its
// own function so parseArgs reads as the argv-to-config transform, not flag
// wiring.
func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("archihost", flag.ContinueOnError)
	return fs
}

// stringSliceFlag collects repeated occurrences of a flag.Value-typed flag
// into a slice, in the order they appeared on argv.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	if s == nil {
		return ""
	}
	return "[" + joinComma(*s) + "]"
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func joinComma(ss []string) string {
	var out string
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
