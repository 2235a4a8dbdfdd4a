package pflagenv

import (
	"os"

	"github.com/spf13/pflag"
)

// Parse is ParseFlagSet on pflag.CommandLine with the process environment.
func Parse(envPrefix string) error {
	return ParseFlagSet(pflag.CommandLine, envPrefix, os.LookupEnv)
}
