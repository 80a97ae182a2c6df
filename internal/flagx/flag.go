// Package flagx lets components share os.Args without stepping on each
// other: a component picks out only the flags it owns before handing them to
// its own FlagSet, so unknown flags belonging to someone else never abort
// parsing.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args consisting of the flags named in
// allowedFlags together with their values. Both the "-f value" and the
// "-f=value" forms are recognized. A dash-prefixed token following an
// allowed flag is treated as the next flag, not as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, name := range allowedFlags {
		allowed[name] = struct{}{}
	}

	// non-nil even when nothing matches
	kept := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "-f=value" / "--flag=value": keep the whole token when the name
		// part is allowed
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				kept = append(kept, arg)
			}
			continue
		}

		// "-f value": keep the flag and, when the next token is not itself
		// a flag, its value
		if _, ok := allowed[arg]; ok {
			kept = append(kept, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				kept = append(kept, args[i+1])
				i++
			}
		}
	}

	return kept
}

// JsonConfigFlags reads only the -c / -config flags from os.Args and returns
// the configured file path, or "" when neither flag is present. Every other
// argument is left alone for its owning component.
func JsonConfigFlags() string {
	var path string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to the JSON config file")
	fs.StringVar(&path, "c", "", "path to the JSON config file (short)")
	_ = fs.Parse(args)

	return path
}
