package cli

import "errors"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errConfigInvalid      = errors.New("invalid config file")
	errFlagRequiresArg    = errors.New("flag requires an argument")
	errUnknownFlag        = errors.New("unknown flag")
	errUnknownCommand     = errors.New("unknown command")
	errFileRequired       = errors.New("at least one file is required")
	errSrcDstRequired     = errors.New("source and destination are required")
	errNegativeOffset     = errors.New("offset cannot be negative")
	errInvalidPerm        = errors.New("perm must be an octal file mode like 0644")
	errAtomicMode         = errors.New("--atomic only supports --mode=write")
)
